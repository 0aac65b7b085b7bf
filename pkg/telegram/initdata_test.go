package telegram

import (
	"errors"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBotToken = "123456:ABC-DEF"

// signedInitData builds launch data the way Telegram does.
func signedInitData(authDate time.Time, user string) string {
	values := url.Values{}
	values.Set("query_id", "AAHdF6IQAAAAAN0XohDhrOrc")
	values.Set("user", user)
	values.Set("auth_date", strconv.FormatInt(authDate.Unix(), 10))
	values.Set("hash", Sign(values, testBotToken))
	return values.Encode()
}

func TestValidateInitData_Valid(t *testing.T) {
	now := time.Now()
	raw := signedInitData(now.Add(-time.Minute), `{"id":279058397,"first_name":"Vladislav","last_name":"Kibenko","username":"vdkfrost"}`)

	data, err := ValidateInitData(raw, testBotToken, time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, int64(279058397), data.User.ID)
	assert.Equal(t, "279058397", data.User.ExternalID())
	assert.Equal(t, "Vladislav Kibenko", data.User.DisplayName())
	assert.Equal(t, "AAHdF6IQAAAAAN0XohDhrOrc", data.QueryID)
}

func TestValidateInitData_Rejections(t *testing.T) {
	now := time.Now()
	valid := signedInitData(now, `{"id":1,"first_name":"A"}`)

	tampered, _ := url.ParseQuery(valid)
	tampered.Set("user", `{"id":2,"first_name":"A"}`)

	noHash, _ := url.ParseQuery(valid)
	noHash.Del("hash")

	tests := []struct {
		name  string
		raw   string
		token string
		now   time.Time
	}{
		{"wrong bot token", valid, "999:other", now},
		{"tampered user", tampered.Encode(), testBotToken, now},
		{"missing hash", noHash.Encode(), testBotToken, now},
		{"expired", valid, testBotToken, now.Add(48 * time.Hour)},
		{"garbage", "%zz", testBotToken, now},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateInitData(tt.raw, tt.token, 24*time.Hour, tt.now)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidInitData))
		})
	}
}

func TestValidateInitData_ZeroMaxAgeSkipsAgeCheck(t *testing.T) {
	raw := signedInitData(time.Unix(1_600_000_000, 0), `{"id":1,"first_name":"A"}`)

	_, err := ValidateInitData(raw, testBotToken, 0, time.Now())
	assert.NoError(t, err)
}

func TestParseInitData_NoSignatureCheck(t *testing.T) {
	values := url.Values{}
	values.Set("user", `{"id":42,"username":"pilot42"}`)

	data, err := ParseInitData(values.Encode())
	require.NoError(t, err)
	assert.Equal(t, "@pilot42", data.User.DisplayName())
	assert.True(t, data.AuthDate.IsZero())
}

func TestParseInitData_MissingUser(t *testing.T) {
	_, err := ParseInitData("auth_date=1")
	assert.True(t, errors.Is(err, ErrInvalidInitData))

	_, err = ParseInitData(`user={"first_name":"NoID"}`)
	assert.True(t, errors.Is(err, ErrInvalidInitData))
}

func TestDisplayName_Fallbacks(t *testing.T) {
	assert.Equal(t, "Anna", DisplayName(" Anna ", "", "anna", 1))
	assert.Equal(t, "@anna", DisplayName("", "", "anna", 1))
	assert.Equal(t, "17", DisplayName("", "", "", 17))
}
