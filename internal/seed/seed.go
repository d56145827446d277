// Package seed fills a store with demo users, classes and chat history.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"kelasin/chat/internal/models"
	"kelasin/chat/internal/store"
	"kelasin/chat/internal/utils"
	"kelasin/chat/pkg/chatproto"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "123456"

// Options controls how much data is generated.
type Options struct {
	Classes          int
	StudentsPerClass int
	MessagesPerClass int
	Seed             int64 // 0 picks a random seed
}

// DefaultOptions seeds enough history to page through more than twice.
func DefaultOptions() Options {
	return Options{Classes: 3, StudentsPerClass: 8, MessagesPerClass: 45}
}

// Result lists what was created. Users[0] is the demo student, Users[1] the
// instructor of every class and Users[2] the admin.
type Result struct {
	Users    []*models.User
	Classes  []*models.Class
	Messages int
}

// Run creates the demo data set.
func Run(ctx context.Context, st store.ChatStore, opts Options) (*Result, error) {
	f := gofakeit.New(opts.Seed)

	hash, err := utils.HashPassword(DefaultPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	res := &Result{}
	newUser := func(email, name string, role chatproto.Role) (*models.User, error) {
		u := &models.User{Email: email, Name: name, Password: hash, Role: role}
		if err := st.CreateUser(ctx, u); err != nil {
			return nil, fmt.Errorf("create user %s: %w", email, err)
		}
		res.Users = append(res.Users, u)
		return u, nil
	}

	student, err := newUser("student@kelasin.dev", f.Name(), chatproto.RoleStudent)
	if err != nil {
		return nil, err
	}
	instructor, err := newUser("instructor@kelasin.dev", f.Name(), chatproto.RoleInstructor)
	if err != nil {
		return nil, err
	}
	admin, err := newUser("admin@kelasin.dev", f.Name(), chatproto.RoleAdmin)
	if err != nil {
		return nil, err
	}

	for i := 0; i < opts.Classes; i++ {
		class, err := st.CreateClass(ctx, fmt.Sprintf("Intro to %s", f.ProgrammingLanguage()))
		if err != nil {
			return nil, fmt.Errorf("create class: %w", err)
		}
		res.Classes = append(res.Classes, class)

		members := []*models.User{student, instructor}
		if err := st.AddMember(ctx, class.ID, student.ID, chatproto.RoleStudent); err != nil {
			return nil, err
		}
		if err := st.AddMember(ctx, class.ID, instructor.ID, chatproto.RoleInstructor); err != nil {
			return nil, err
		}
		if err := st.AddMember(ctx, class.ID, admin.ID, chatproto.RoleAdmin); err != nil {
			return nil, err
		}

		for j := 0; j < opts.StudentsPerClass; j++ {
			u, err := newUser(f.Email(), f.Name(), chatproto.RoleStudent)
			if err != nil {
				return nil, err
			}
			if err := st.AddMember(ctx, class.ID, u.ID, chatproto.RoleStudent); err != nil {
				return nil, err
			}
			members = append(members, u)
		}

		n, err := seedMessages(ctx, st, f, class.ID, members, opts.MessagesPerClass)
		if err != nil {
			return nil, err
		}
		res.Messages += n
	}

	return res, nil
}

// seedMessages writes count messages one minute apart ending now. Roughly
// one in six replies to an earlier message.
func seedMessages(ctx context.Context, st store.ChatStore, f *gofakeit.Faker, classID string, members []*models.User, count int) (int, error) {
	start := time.Now().Add(-time.Duration(count) * time.Minute)
	var ids []string

	for i := 0; i < count; i++ {
		sender := members[f.Number(0, len(members)-1)]
		m := &models.Message{
			ClassID:     classID,
			SenderID:    sender.ID,
			Content:     f.Sentence(f.Number(3, 14)),
			MessageType: chatproto.MessageTypeText,
			CreatedAt:   start.Add(time.Duration(i) * time.Minute),
		}
		if len(ids) > 0 && f.Number(1, 6) == 1 {
			replyTo := ids[f.Number(0, len(ids)-1)]
			m.ReplyToID = &replyTo
		}
		if err := st.CreateMessage(ctx, m); err != nil {
			return i, fmt.Errorf("create message: %w", err)
		}
		ids = append(ids, m.ID)
	}
	return count, nil
}
