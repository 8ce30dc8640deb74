package http

import (
	"context"
	"net/http"

	"github.com/kjstillabower/climate-insights/internal/models"
	"github.com/kjstillabower/climate-insights/internal/validation"
)

var userResource = resource{
	name:   "User",
	label:  "user",
	plural: "users",
	unique: "Email already exists",
}

func (h *Handler) userExists(ctx context.Context, id int64) error {
	_, err := h.store.GetUser(ctx, id)
	return err
}

func (h *Handler) ListUsers() http.HandlerFunc {
	return serve(h, endpoint[models.Page]{
		resource: userResource,
		action:   "fetch",
		list:     true,
		bind:     h.page,
		run: func(ctx context.Context, _ int64, page models.Page) (interface{}, error) {
			rows, err := h.store.ListUsers(ctx, page)
			return nonNil(rows), err
		},
	})
}

func (h *Handler) GetUser() http.HandlerFunc {
	return serve(h, endpoint[struct{}]{
		resource: userResource,
		action:   "fetch",
		withID:   true,
		run: func(ctx context.Context, id int64, _ struct{}) (interface{}, error) {
			return h.store.GetUser(ctx, id)
		},
	})
}

func (h *Handler) CreateUser() http.HandlerFunc {
	return serve(h, endpoint[models.UserInput]{
		resource: userResource,
		action:   "create",
		mutates:  true,
		status:   http.StatusCreated,
		bind:     body(validation.UserCreate),
		run: func(ctx context.Context, _ int64, in models.UserInput) (interface{}, error) {
			return h.store.CreateUser(ctx, in)
		},
	})
}

func (h *Handler) UpdateUser() http.HandlerFunc {
	return serve(h, endpoint[models.UserPatch]{
		resource: userResource,
		action:   "update",
		withID:   true,
		mutates:  true,
		bind:     body(validation.UserPatch),
		exists:   h.userExists,
		run: func(ctx context.Context, id int64, patch models.UserPatch) (interface{}, error) {
			return h.store.UpdateUser(ctx, id, patch)
		},
	})
}

func (h *Handler) DeleteUser() http.HandlerFunc {
	return serve(h, endpoint[struct{}]{
		resource: userResource,
		action:   "delete",
		withID:   true,
		mutates:  true,
		exists:   h.userExists,
		run: func(ctx context.Context, id int64, _ struct{}) (interface{}, error) {
			return deleted(h.store.DeleteUser(ctx, id))
		},
	})
}
