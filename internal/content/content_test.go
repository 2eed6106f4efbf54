package content_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MegaGrindStone/sakhi/internal/content"
)

func TestTelURI(t *testing.T) {
	tests := []struct {
		number string
		want   string
	}{
		{"108", "tel:108"},
		{"+91 98765 43210", "tel:+919876543210"},
		{" 181 ", "tel:181"},
		{"98765+43210", "tel:9876543210"},
		{"javascript:alert(1)", "tel:1"},
	}
	for _, tt := range tests {
		if got := content.TelURI(tt.number); got != tt.want {
			t.Errorf("TelURI(%q) = %q, want %q", tt.number, got, tt.want)
		}
	}

	for _, c := range append(content.EmergencyContacts, content.HelpContacts...) {
		uri := strings.TrimPrefix(c.TelURI(), "tel:")
		if uri == "" || strings.ContainsAny(uri, " -()") {
			t.Errorf("%s: bad tel URI %q", c.Name, c.TelURI())
		}
	}
}

func TestLookup(t *testing.T) {
	seen := make(map[string]bool)
	for _, c := range content.Categories {
		for _, it := range c.Items {
			key := c.ID + "/" + it.Slug
			if seen[key] {
				t.Errorf("duplicate item %s", key)
			}
			seen[key] = true
			if len(it.Steps) == 0 {
				t.Errorf("%s has no steps", key)
			}
			if _, got, ok := content.Lookup(c.ID, it.Slug); !ok || got.Title != it.Title {
				t.Errorf("Lookup(%s) = %+v, %v", key, got, ok)
			}
		}
	}
	if _, _, ok := content.Lookup("wellness", "missing"); ok {
		t.Error("Lookup(missing slug) ok")
	}
	if _, _, ok := content.Lookup("missing", "morning-meditation"); ok {
		t.Error("Lookup(missing category) ok")
	}
}

func TestGreetingAndTip(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		hour int
		want string
	}{
		{6, "Good morning"},
		{13, "Good afternoon"},
		{21, "Good evening"},
	}
	for _, tt := range tests {
		if got := content.Greeting(day.Add(time.Duration(tt.hour) * time.Hour)); got != tt.want {
			t.Errorf("Greeting(%d:00) = %q, want %q", tt.hour, got, tt.want)
		}
	}
	if content.DailyTip(day) == content.DailyTip(day.AddDate(0, 0, 1)) {
		t.Error("DailyTip() did not rotate")
	}
}

func TestJoinFormProfile(t *testing.T) {
	signup := content.JoinForm{
		Signup: true, Name: "Priya", Email: "priya@example.com", Phone: "9876543210",
		Password: "secret", ConfirmPassword: "secret", AgreeToTerms: true, Language: "bengali",
	}

	tests := []struct {
		name    string
		form    func() content.JoinForm
		wantErr bool
	}{
		{name: "valid signup", form: func() content.JoinForm { return signup }},
		{name: "valid login", form: func() content.JoinForm {
			return content.JoinForm{Email: "asha@example.com", Password: "x"}
		}},
		{name: "bad email", form: func() content.JoinForm {
			f := signup
			f.Email = "priya"
			return f
		}, wantErr: true},
		{name: "missing password", form: func() content.JoinForm {
			return content.JoinForm{Email: "asha@example.com"}
		}, wantErr: true},
		{name: "password mismatch", form: func() content.JoinForm {
			f := signup
			f.ConfirmPassword = "other"
			return f
		}, wantErr: true},
		{name: "terms not accepted", form: func() content.JoinForm {
			f := signup
			f.AgreeToTerms = false
			return f
		}, wantErr: true},
		{name: "missing phone", form: func() content.JoinForm {
			f := signup
			f.Phone = " "
			return f
		}, wantErr: true},
		{name: "display name in email", form: func() content.JoinForm {
			f := signup
			f.Email = "Asha <asha@example.com>"
			return f
		}, wantErr: true},
		{name: "login skips signup fields", form: func() content.JoinForm {
			return content.JoinForm{Email: "asha@example.com", Password: "x", ConfirmPassword: "y"}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tt.form().Profile()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Profile() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, content.ErrInvalidForm) {
				t.Errorf("Profile() error = %v, want ErrInvalidForm", err)
			}
			if err == nil && p.Language == "" {
				t.Error("Profile() has no language")
			}
		})
	}

	p, _ := content.JoinForm{Email: " asha@example.com ", Password: "x", Language: "klingon"}.Profile()
	if p.Name != "asha" || p.Email != "asha@example.com" || p.Language != "hindi" {
		t.Errorf("login profile = %+v, want trimmed email, name from email and default language", p)
	}
}

func TestJoinFormMessages(t *testing.T) {
	tests := []struct {
		name string
		form content.JoinForm
		want string
	}{
		{name: "email first", form: content.JoinForm{Signup: true}, want: "a valid email is required"},
		{name: "password", form: content.JoinForm{Email: "a@b.in"}, want: "password is required"},
		{name: "name", form: content.JoinForm{Signup: true, Email: "a@b.in", Password: "x"}, want: "name is required"},
		{name: "mismatch before terms", form: content.JoinForm{
			Signup: true, Email: "a@b.in", Password: "x", ConfirmPassword: "y", Name: "A", Phone: "1",
		}, want: "passwords do not match"},
		{name: "terms", form: content.JoinForm{
			Signup: true, Email: "a@b.in", Password: "x", ConfirmPassword: "x", Name: "A", Phone: "1",
		}, want: "please accept the terms"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.form.Profile()
			if err == nil || !strings.HasSuffix(err.Error(), tt.want) {
				t.Errorf("Profile() error = %v, want %q", err, tt.want)
			}
		})
	}
}
