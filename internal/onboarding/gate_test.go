package onboarding

import (
	"context"
	"errors"
	"testing"

	"github.com/neurabot/neurabot/internal/model"
)

type mockUserFetcher struct {
	user  *model.User
	err   error
	calls int
}

func (m *mockUserFetcher) GetUser(_ context.Context, _ string) (*model.User, error) {
	m.calls++
	return m.user, m.err
}

func TestGate_Check(t *testing.T) {
	tests := []struct {
		name     string
		fetcher  *mockUserFetcher
		redirect string
		form     *Form
	}{
		{
			name:     "fetch error redirects to login",
			fetcher:  &mockUserFetcher{err: errors.New("network")},
			redirect: "/login",
		},
		{
			name:     "no user redirects to login",
			fetcher:  &mockUserFetcher{},
			redirect: "/login",
		},
		{
			name: "completed onboarding redirects to dashboard",
			fetcher: &mockUserFetcher{user: &model.User{Metadata: model.Metadata{
				model.MetadataSummaryMode: "dokter_hewan",
				model.MetadataUsername:    "Dr. Ana",
			}}},
			redirect: "/dashboard",
		},
		{
			name:    "empty metadata renders default form",
			fetcher: &mockUserFetcher{user: &model.User{}},
			form:    &Form{Name: "", Role: model.RolePathologist},
		},
		{
			name: "partial metadata prefills name",
			fetcher: &mockUserFetcher{user: &model.User{Metadata: model.Metadata{
				model.MetadataUsername: "Dr. Ana",
			}}},
			form: &Form{Name: "Dr. Ana", Role: model.RolePathologist},
		},
		{
			name: "partial metadata prefills role",
			fetcher: &mockUserFetcher{user: &model.User{Metadata: model.Metadata{
				model.MetadataSummaryMode: "dokter_hewan",
			}}},
			form: &Form{Role: model.RoleVeterinarian},
		},
		{
			name: "empty string values count as missing",
			fetcher: &mockUserFetcher{user: &model.User{Metadata: model.Metadata{
				model.MetadataSummaryMode: "patologi",
				model.MetadataUsername:    "",
			}}},
			form: &Form{Role: model.RolePathologist},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewGate(tt.fetcher).Check(context.Background(), "token")

			if got.RedirectTo != tt.redirect {
				t.Errorf("RedirectTo = %q, want %q", got.RedirectTo, tt.redirect)
			}
			if tt.form == nil {
				if got.Form != nil {
					t.Errorf("Form = %+v, want nil", got.Form)
				}
			} else if got.Form == nil || *got.Form != *tt.form {
				t.Errorf("Form = %+v, want %+v", got.Form, tt.form)
			}
			if tt.fetcher.calls != 1 {
				t.Errorf("GetUser called %d times, want 1", tt.fetcher.calls)
			}
		})
	}
}
