package chatclient

// Toast is a short user-facing notification.
type Toast struct {
	Title       string
	Description string
	Destructive bool
}

// Notifier shows toasts. Every chat failure ends up here instead of being
// fatal to the caller.
type Notifier interface {
	Notify(t Toast)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(t Toast)

func (f NotifierFunc) Notify(t Toast) { f(t) }

type nopNotifier struct{}

func (nopNotifier) Notify(Toast) {}

func errorToast(title string, err error) Toast {
	return Toast{Title: title, Description: err.Error(), Destructive: true}
}
