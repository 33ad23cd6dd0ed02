package registry

import (
	"context"
	"fmt"

	"github.com/vk/buildgrid/internal/session"
)

// Handler adapts a strongly typed handler into a RegisteredTask. T is the
// input struct; its fields must carry `hcl` tags.
func Handler[T any](description string, fn func(ctx context.Context, sess *session.Session, input *T) error) *RegisteredTask {
	return &RegisteredTask{
		Description: description,
		NewInput:    func() any { return new(T) },
		Fn: func(ctx context.Context, sess *session.Session, input any) error {
			typed, ok := input.(*T)
			if !ok {
				return fmt.Errorf("internal error: handler expects %T, got %T", new(T), input)
			}
			return fn(ctx, sess, typed)
		},
	}
}
