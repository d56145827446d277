package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"kelasin/chat/pkg/chatclient"
	"kelasin/chat/pkg/chatproto"
)

const chatHelp = `Type a line to send it. Commands:
  /list                 show loaded messages with their numbers
  /more                 load older messages
  /reply [n]            reply to message n with the next line (no n clears)
  /edit <n> <text>      edit your message n
  /delete <n>           delete your message n
  /image <path> [text]  send an image (max 3 MB)
  /file <path>          upload and send a file
  /search [term]        filter history (no term clears)
  /info                 class and members
  /quit                 leave the chat`

type command struct {
	name  string
	index int // 1-based message number, 0 when not given
	path  string
	text  string
}

var errUsage = errors.New("invalid command, type /help")

// parseLine turns one input line into a command. Lines without a leading
// slash are messages.
func parseLine(line string) (command, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return command{name: "send", text: line}, nil
	}

	name, rest, _ := strings.Cut(line[1:], " ")
	rest = strings.TrimSpace(rest)
	cmd := command{name: name}

	switch name {
	case "list", "more", "info", "quit", "help":
	case "search":
		cmd.text = rest
	case "reply":
		if rest == "" {
			return cmd, nil
		}
		n, err := strconv.Atoi(rest)
		if err != nil || n < 1 {
			return cmd, errUsage
		}
		cmd.index = n
	case "edit", "delete":
		arg, text, _ := strings.Cut(rest, " ")
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			return cmd, errUsage
		}
		cmd.index = n
		cmd.text = strings.TrimSpace(text)
		if name == "edit" && cmd.text == "" {
			return cmd, errUsage
		}
	case "image", "file":
		path, text, _ := strings.Cut(rest, " ")
		if path == "" {
			return cmd, errUsage
		}
		cmd.path = path
		cmd.text = strings.TrimSpace(text)
	default:
		return cmd, errUsage
	}
	return cmd, nil
}

func (a *app) chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat <classId>",
		Short: "Open a class chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.api()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			user, err := api.Me(ctx)
			if err != nil {
				return explain(err)
			}
			sock, err := chatclient.Dial(ctx, api.SocketURL(), api.Token, a.logger)
			if err != nil {
				return explain(err)
			}
			defer sock.Close()

			r := &room{out: os.Stdout, userID: user.ID}
			r.chat = chatclient.NewChat(chatclient.Config{
				API:      api,
				Socket:   sock,
				UserID:   user.ID,
				Notifier: a.notifier(),
				Logger:   a.logger,
				OnUpdate: r.onUpdate,
			})
			defer r.chat.Close()

			if err := r.chat.Open(ctx, args[0]); err != nil {
				return explain(err)
			}
			if info := r.chat.Info(); info != nil {
				fmt.Fprintf(r.out, "== %s (%d members, %d messages) ==\n", info.Name, info.TotalMembers, info.TotalMessages)
			}
			r.list()
			fmt.Fprintln(r.out, "Type /help for commands.")

			return r.run(ctx, os.Stdin, sock.Done())
		},
	}
}

// room is the interactive state of the chat command.
type room struct {
	chat   *chatclient.Chat
	userID string

	mu      sync.Mutex
	out     io.Writer
	replyTo string
}

func (r *room) run(ctx context.Context, in io.Reader, closed <-chan struct{}) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-closed:
			return errors.New("connection closed")
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			cmd, err := parseLine(line)
			if err != nil {
				r.printf("%v\n", err)
				continue
			}
			if cmd.name == "quit" {
				return nil
			}
			r.exec(ctx, cmd)
		}
	}
}

func (r *room) exec(ctx context.Context, cmd command) {
	c := r.chat
	switch cmd.name {
	case "send":
		reply := r.takeReply()
		_ = c.Composer.SendText(cmd.text, reply)
	case "help":
		r.printf("%s\n", chatHelp)
	case "list":
		r.list()
	case "more":
		loaded, err := c.LoadMore(ctx)
		switch {
		case err != nil:
		case !loaded && !c.Pager.HasMore():
			r.printf("No older messages.\n")
		default:
			r.list()
		}
	case "search":
		if err := c.Search(ctx, cmd.text); err == nil {
			r.list()
		}
	case "info":
		r.info()
	case "reply":
		if cmd.index == 0 {
			r.setReply("")
			return
		}
		if m := r.message(cmd.index); m != nil {
			r.setReply(m.ID)
			r.printf("Replying to %s\n", m.Sender.Name)
		}
	case "edit":
		if m := r.message(cmd.index); m != nil {
			_ = c.Composer.Edit(m, cmd.text)
		}
	case "delete":
		if m := r.message(cmd.index); m != nil {
			_ = c.Composer.Delete(m)
		}
	case "image":
		data, err := os.ReadFile(cmd.path)
		if err != nil {
			r.printf("%v\n", err)
			return
		}
		_ = c.Composer.SendImage(filepath.Base(cmd.path), imageMIME(cmd.path, data), data, cmd.text, r.takeReply())
	case "file":
		f, err := os.Open(cmd.path)
		if err != nil {
			r.printf("%v\n", err)
			return
		}
		defer f.Close()
		_ = c.Composer.SendFile(ctx, filepath.Base(cmd.path), f, r.takeReply())
	}
}

func imageMIME(path string, data []byte) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); t != "" {
		return t
	}
	return http.DetectContentType(data)
}

func (r *room) onUpdate(u chatclient.Update) {
	switch u.Type {
	case chatproto.EventNewMessage:
		// Live messages can land before newer ones already shown
		r.printMessage(r.indexOf(u.Message.ID), u.Message)
	case chatproto.EventMessageEdited:
		r.printf("* message edited\n")
		r.printMessage(r.indexOf(u.Message.ID), u.Message)
	case chatproto.EventMessageDeleted:
		r.printf("* message %d deleted\n", r.indexOf(u.MessageID))
	case chatproto.EventUserTyping:
		if len(u.Typing) > 0 {
			r.printf("* %s typing...\n", strings.Join(u.Typing, ", "))
		}
	}
}

func (r *room) list() {
	for i, m := range r.chat.Messages() {
		r.printMessage(i+1, m)
	}
	if r.chat.Pager.HasMore() {
		r.printf("(older messages available, /more)\n")
	}
}

func (r *room) info() {
	info := r.chat.Info()
	if info == nil {
		return
	}
	r.printf("%s: %d members, %d messages\n", info.Name, info.TotalMembers, info.TotalMessages)
	for _, m := range info.Members {
		r.printf("  %s (%s)\n", m.Name, strings.ToLower(string(m.Role)))
	}
}

func (r *room) printMessage(n int, m *chatproto.ChatMessage) {
	text := r.chat.Renderer.Format(r.chat.Renderer.Render(m, r.userID))
	r.printf("[%d] %s", n, text)
}

// message returns the n-th loaded message, 1-based.
func (r *room) message(n int) *chatproto.ChatMessage {
	msgs := r.chat.Messages()
	if n < 1 || n > len(msgs) {
		r.printf("No message %d\n", n)
		return nil
	}
	return msgs[n-1]
}

func (r *room) indexOf(id string) int {
	for i, m := range r.chat.Messages() {
		if m.ID == id {
			return i + 1
		}
	}
	return 0
}

func (r *room) setReply(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replyTo = id
}

func (r *room) takeReply() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.replyTo
	r.replyTo = ""
	return id
}

func (r *room) printf(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}
