package validation

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kycgate/internal/verification/models"
)

func validApplicant() models.Applicant {
	return models.Applicant{
		Username:  "John_Doe-42",
		FirstName: "john",
		LastName:  "ÖZTÜRK",
		Email:     "John.Doe@Example.COM",
		Phone:     "+90 555 123-4567",
	}
}

func TestValidate(t *testing.T) {
	t.Run("normalizes a valid applicant", func(t *testing.T) {
		got, err := Validate(validApplicant())
		require.NoError(t, err)
		assert.Equal(t, "john_doe-42", got.Username)
		assert.Equal(t, "John", got.FirstName)
		assert.Equal(t, "Öztürk", got.LastName)
		assert.Equal(t, "john.doe@example.com", got.Email)
		assert.Equal(t, "+90 555 123-4567", got.Phone, "phone is stored as submitted")
	})

	t.Run("trims surrounding whitespace", func(t *testing.T) {
		in := validApplicant()
		in.Username = "  alice  "
		got, err := Validate(in)
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Username)
	})

	cases := []struct {
		name   string
		mutate func(*models.Applicant)
		field  string
		reason string
	}{
		{"missing username", func(a *models.Applicant) { a.Username = "" }, "username", "field required"},
		{"short username", func(a *models.Applicant) { a.Username = "ab" }, "username", "must be at least 3 characters"},
		{"long username", func(a *models.Applicant) { a.Username = strings.Repeat("a", 51) }, "username", "must be at most 50 characters"},
		{"username charset", func(a *models.Applicant) { a.Username = "john doe" }, "username", "may only contain letters, digits, hyphens and underscores"},
		{"name with digits", func(a *models.Applicant) { a.FirstName = "J0hn" }, "first_name", "may only contain letters and spaces"},
		{"short last name", func(a *models.Applicant) { a.LastName = "Ö" }, "last_name", "must be at least 2 characters"},
		{"bad email", func(a *models.Applicant) { a.Email = "not-an-email" }, "email", "must be a valid email address"},
		{"short phone", func(a *models.Applicant) { a.Phone = "+9055512" }, "phone", "must be at least 10 characters"},
		{"letters in phone", func(a *models.Applicant) { a.Phone = "abc1234567" }, "phone", "must be a valid phone number"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validApplicant()
			tc.mutate(&in)
			_, err := Validate(in)

			var verr *Error
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
			assert.Equal(t, tc.reason, verr.Reason)
		})
	}

	t.Run("reports the first failing field in form order", func(t *testing.T) {
		in := validApplicant()
		in.Phone = "x"
		in.Username = "!"
		_, err := Validate(in)

		var verr *Error
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "username", verr.Field)
	})
}

func TestValidPhone(t *testing.T) {
	assert.True(t, ValidPhone("+905551234567"))
	assert.False(t, ValidPhone("0555 123 45 67"), "leading zero is not E.164")
	assert.True(t, ValidPhone("555-123-4567"))
	assert.False(t, ValidPhone("abc123"))
	assert.False(t, ValidPhone("+1234567890123456"), "more than 15 digits")
}

const usernameAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_-"

func TestNormalizeUsernameIdempotent(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for range 500 {
		n := 3 + rng.IntN(48)
		var b strings.Builder
		for range n {
			b.WriteByte(usernameAlphabet[rng.IntN(len(usernameAlphabet))])
		}
		u := b.String()
		once := NormalizeUsername(u)
		require.Equal(t, once, NormalizeUsername(once), "input %q", u)
		require.True(t, usernamePattern.MatchString(once))
	}
}

func TestNormalizeNameIdempotent(t *testing.T) {
	names := []string{
		"ayşe", "MEHMET ALİ", "çağrı öztürk", "ğülşen", "ıŞık", "o'brien", "mary  jane", "İSTANBUL", "ZEYNEP",
	}
	rng := rand.New(rand.NewPCG(3, 5))
	letters := []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZğĞıİöÖüÜşŞçÇ ")
	for range 200 {
		r := make([]rune, 2+rng.IntN(30))
		for i := range r {
			r[i] = letters[rng.IntN(len(letters))]
		}
		names = append(names, string(r))
	}

	for _, n := range names {
		once := NormalizeName(n)
		assert.Equal(t, once, NormalizeName(once), "input %q", n)
	}
}
