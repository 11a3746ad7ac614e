package user_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/finance-tracker/internal"
	"github.com/frahmantamala/finance-tracker/internal/auth"
	"github.com/frahmantamala/finance-tracker/internal/core/events"
	"github.com/frahmantamala/finance-tracker/internal/user"
)

type mockRepository struct {
	users       map[int64]*user.User
	updateCalls int
	shouldFail  bool
	deleted     []int64
	stats       user.SystemStats
}

func (m *mockRepository) GetByID(_ context.Context, id int64) (*user.User, error) {
	if m.shouldFail {
		return nil, errors.New("database error")
	}
	u, ok := m.users[id]
	if !ok {
		return nil, internal.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockRepository) UpdateNames(_ context.Context, id int64, firstName, lastName *string) error {
	m.updateCalls++
	u, ok := m.users[id]
	if !ok {
		return internal.ErrUserNotFound
	}
	if firstName != nil {
		u.FirstName = *firstName
	}
	if lastName != nil {
		u.LastName = *lastName
	}
	return nil
}

func (m *mockRepository) List(_ context.Context) ([]user.User, error) {
	if m.shouldFail {
		return nil, errors.New("database error")
	}
	out := make([]user.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *mockRepository) UpdateRole(_ context.Context, id int64, role string) error {
	u, ok := m.users[id]
	if !ok {
		return internal.ErrUserNotFound
	}
	u.Role = role
	return nil
}

func (m *mockRepository) Delete(_ context.Context, id int64) error {
	if _, ok := m.users[id]; !ok {
		return internal.ErrUserNotFound
	}
	delete(m.users, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockRepository) Stats(_ context.Context) (*user.SystemStats, error) {
	if m.shouldFail {
		return nil, errors.New("database error")
	}
	cp := m.stats
	return &cp, nil
}

type recordingPublisher struct {
	events []events.Event
}

func (p *recordingPublisher) PublishSync(_ context.Context, e events.Event) error {
	p.events = append(p.events, e)
	return nil
}

func strPtr(s string) *string { return &s }

var _ = Describe("User Service", func() {
	var (
		repo    *mockRepository
		service *user.Service
		ctx     context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = &mockRepository{users: map[int64]*user.User{
			7: {ID: 7, Email: "ann@example.com", FirstName: "Ann", LastName: "Lee", Role: "user", IsActive: true},
		}}
		service = user.NewService(repo)
	})

	It("returns the profile", func() {
		u, err := service.GetByID(ctx, 7)
		Expect(err).NotTo(HaveOccurred())
		Expect(u.Email).To(Equal("ann@example.com"))
	})

	It("returns not found for unknown users", func() {
		_, err := service.GetByID(ctx, 99)
		Expect(err).To(MatchError(internal.ErrUserNotFound))
	})

	It("updates only the given names", func() {
		u, err := service.UpdateProfile(ctx, 7, user.UpdateProfileDTO{LastName: strPtr("Park")})
		Expect(err).NotTo(HaveOccurred())
		Expect(u.FirstName).To(Equal("Ann"))
		Expect(u.LastName).To(Equal("Park"))
	})

	It("skips the write when nothing changes", func() {
		_, err := service.UpdateProfile(ctx, 7, user.UpdateProfileDTO{})
		Expect(err).NotTo(HaveOccurred())
		Expect(repo.updateCalls).To(BeZero())
	})

	Describe("administration", func() {
		var publisher *recordingPublisher

		BeforeEach(func() {
			repo.users[1] = &user.User{ID: 1, Email: "root@example.com", Role: "admin", IsActive: true}
			repo.users[9] = &user.User{ID: 9, Email: "old@example.com", Role: "user", IsActive: false}
			publisher = &recordingPublisher{}
			started := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
			service = user.NewService(repo,
				user.WithPublisher(publisher),
				user.WithStartTime(started),
				user.WithClock(func() time.Time { return started.Add(50*time.Hour + 7*time.Minute) }),
			)
		})

		It("lists every user", func() {
			users, err := service.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(users).To(HaveLen(3))
			Expect(users[0].ID).To(Equal(int64(9)))
		})

		It("changes a role", func() {
			u, err := service.UpdateRole(ctx, 1, 7, user.UpdateRoleDTO{Role: "read-only"})
			Expect(err).NotTo(HaveOccurred())
			Expect(u.Role).To(Equal("read-only"))
		})

		It("rejects unknown roles", func() {
			_, err := service.UpdateRole(ctx, 1, 7, user.UpdateRoleDTO{Role: "owner"})
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
			Expect(repo.users[7].Role).To(Equal("user"))
		})

		It("deletes a user and announces it", func() {
			Expect(service.Delete(ctx, 1, 7)).To(Succeed())
			Expect(repo.deleted).To(Equal([]int64{7}))

			Expect(publisher.events).To(HaveLen(1))
			ev, ok := publisher.events[0].(*events.UserDeletedEvent)
			Expect(ok).To(BeTrue())
			Expect(ev.UserID).To(Equal(int64(7)))
			Expect(ev.ActorID).To(Equal(int64(1)))
		})

		It("refuses to delete the acting user", func() {
			Expect(service.Delete(ctx, 1, 1)).To(MatchError(internal.ErrSelfDelete))
			Expect(repo.deleted).To(BeEmpty())
			Expect(publisher.events).To(BeEmpty())
		})

		It("announces nothing when the user does not exist", func() {
			Expect(service.Delete(ctx, 1, 404)).To(MatchError(internal.ErrUserNotFound))
			Expect(publisher.events).To(BeEmpty())
		})

		It("reports stats with the uptime", func() {
			repo.stats = user.SystemStats{TotalUsers: 3, ActiveUsers: 2, TotalTransactions: 40, TotalCategories: 12}
			stats, err := service.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.TotalUsers).To(Equal(int64(3)))
			Expect(stats.ActiveUsers).To(Equal(int64(2)))
			Expect(stats.SystemUptime).To(Equal("2d 2h 7m"))
		})

		It("wraps store failures in stats", func() {
			repo.shouldFail = true
			_, err := service.Stats(ctx)
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(http.StatusInternalServerError))
		})
	})

	It("formats uptime", func() {
		Expect(user.FormatUptime(0)).To(Equal("0d 0h 0m"))
		Expect(user.FormatUptime(25*time.Hour + 90*time.Second)).To(Equal("1d 1h 1m"))
	})

	It("rejects names that are too long", func() {
		_, err := service.UpdateProfile(ctx, 7, user.UpdateProfileDTO{FirstName: strPtr(strings.Repeat("a", 51))})
		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		Expect(repo.updateCalls).To(BeZero())
	})
})

var _ = Describe("User Handler", func() {
	var (
		repo    *mockRepository
		handler *user.Handler
	)

	BeforeEach(func() {
		repo = &mockRepository{users: map[int64]*user.User{
			7: {ID: 7, Email: "ann@example.com", FirstName: "Ann", LastName: "Lee", Role: "user", IsActive: true},
		}}
		handler = user.NewHandler(user.NewService(repo))
	})

	withUser := func(req *http.Request, id int64) *http.Request {
		return req.WithContext(auth.ContextWithUser(req.Context(), &auth.User{ID: id, Role: auth.RoleUser}))
	}

	withRouteID := func(req *http.Request, id string, h http.HandlerFunc, rec *httptest.ResponseRecorder) {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", id)
		h(rec, req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx)))
	}

	It("returns the current user", func() {
		rec := httptest.NewRecorder()
		handler.GetCurrentUser(rec, withUser(httptest.NewRequest(http.MethodGet, "/users/me", nil), 7))
		Expect(rec.Code).To(Equal(http.StatusOK))

		var body struct {
			Success bool      `json:"success"`
			Data    user.User `json:"data"`
		}
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body.Success).To(BeTrue())
		Expect(body.Data.FirstName).To(Equal("Ann"))
	})

	It("updates the current user", func() {
		payload, _ := json.Marshal(map[string]string{"first_name": "Anna"})
		rec := httptest.NewRecorder()
		handler.UpdateCurrentUser(rec, withUser(httptest.NewRequest(http.MethodPut, "/users/me", bytes.NewReader(payload)), 7))
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(repo.users[7].FirstName).To(Equal("Anna"))
	})

	It("rejects a malformed body", func() {
		rec := httptest.NewRecorder()
		handler.UpdateCurrentUser(rec, withUser(httptest.NewRequest(http.MethodPut, "/users/me", strings.NewReader("{")), 7))
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("answers 401 without a user in the context", func() {
		rec := httptest.NewRecorder()
		handler.GetCurrentUser(rec, httptest.NewRequest(http.MethodGet, "/users/me", nil))
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})

	It("deletes another user through the admin route", func() {
		repo.users[9] = &user.User{ID: 9, Email: "old@example.com", Role: "user"}
		req := withUser(httptest.NewRequest(http.MethodDelete, "/users/9", nil), 7)
		rec := httptest.NewRecorder()
		withRouteID(req, "9", handler.DeleteUser, rec)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(repo.users).NotTo(HaveKey(int64(9)))
	})

	It("answers 400 when an admin deletes themselves", func() {
		req := withUser(httptest.NewRequest(http.MethodDelete, "/users/7", nil), 7)
		rec := httptest.NewRecorder()
		withRouteID(req, "7", handler.DeleteUser, rec)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(rec.Body.String()).To(ContainSubstring(string(internal.ErrCodeSelfDelete)))
	})

	It("rejects a malformed user id", func() {
		req := withUser(httptest.NewRequest(http.MethodPut, "/users/abc/role", strings.NewReader(`{"role":"admin"}`)), 7)
		rec := httptest.NewRecorder()
		withRouteID(req, "abc", handler.UpdateUserRole, rec)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("updates a role", func() {
		repo.users[9] = &user.User{ID: 9, Email: "old@example.com", Role: "user"}
		req := withUser(httptest.NewRequest(http.MethodPut, "/users/9/role", strings.NewReader(`{"role":"read-only"}`)), 7)
		rec := httptest.NewRecorder()
		withRouteID(req, "9", handler.UpdateUserRole, rec)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(repo.users[9].Role).To(Equal("read-only"))
	})

	It("returns system stats", func() {
		repo.stats = user.SystemStats{TotalUsers: 1, ActiveUsers: 1}
		rec := httptest.NewRecorder()
		handler.GetSystemStats(rec, withUser(httptest.NewRequest(http.MethodGet, "/admin/stats", nil), 7))
		Expect(rec.Code).To(Equal(http.StatusOK))

		var body struct {
			Data map[string]interface{} `json:"data"`
		}
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body.Data).To(HaveKeyWithValue("totalUsers", BeEquivalentTo(1)))
		Expect(body.Data).To(HaveKey("systemUptime"))
	})

	It("maps a deleted account to 404", func() {
		rec := httptest.NewRecorder()
		handler.GetCurrentUser(rec, withUser(httptest.NewRequest(http.MethodGet, "/users/me", nil), 99))
		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})
})
