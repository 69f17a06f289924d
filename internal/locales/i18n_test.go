package locales

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestMessage(t *testing.T) {
	require.NoError(t, Init("en"))

	assert.Equal(t, "No channel", Message("", MsgErrorInvalidChannel))
	assert.Equal(t, "Неверный курсор", Message("ru-RU,ru;q=0.9,en;q=0.8", MsgErrorInvalidCursor))
	assert.Equal(t, "Invalid cursor", Message("de-DE", MsgErrorInvalidCursor))
	assert.Equal(t, "MsgUnknown", Message("en", "MsgUnknown"))
}

func TestInit_DefaultLanguage(t *testing.T) {
	require.NoError(t, Init("ru"))
	t.Cleanup(func() { _ = Init("en") })

	assert.Equal(t, language.Russian, DefaultLanguage())
	assert.Equal(t, "Слишком много запросов", Message("", MsgErrorRateLimited))

	require.NoError(t, Init("not a language!"))
	assert.Equal(t, language.English, DefaultLanguage())
}

func TestCatalogsHaveSameKeys(t *testing.T) {
	require.NoError(t, Init("en"))
	for _, id := range []string{
		MsgErrorInvalidChannel, MsgErrorInvalidCursor, MsgErrorInvalidLimit,
		MsgErrorInternal, MsgErrorRateLimited, MsgErrorNotFound, MsgErrorUnauthorized,
	} {
		assert.NotEqual(t, id, Message("en", id), "missing en message %s", id)
		assert.NotEqual(t, id, Message("ru", id), "missing ru message %s", id)
	}
}
