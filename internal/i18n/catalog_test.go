package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type TranslatorSuite struct {
	suite.Suite
	tr *Translator
}

func (s *TranslatorSuite) SetupTest() {
	tr, err := New("en", []string{"en", "fr", "de", "es"})
	s.Require().NoError(err)
	s.tr = tr
}

func TestTranslatorSuite(t *testing.T) {
	suite.Run(t, new(TranslatorSuite))
}

func (s *TranslatorSuite) TestMatch() {
	s.Run("exact supported locale", func() {
		got, ok := s.tr.Match("fr")
		s.True(ok)
		s.Equal("fr", got)
	})

	s.Run("regional variant maps to base locale", func() {
		got, ok := s.tr.Match("de-AT")
		s.True(ok)
		s.Equal("de", got)
	})

	s.Run("unsupported locale falls back to default", func() {
		got, ok := s.tr.Match("ja")
		s.False(ok)
		s.Equal("en", got)
	})

	s.Run("garbage falls back to default", func() {
		got, ok := s.tr.Match("<script>")
		s.False(ok)
		s.Equal("en", got)
	})

	s.Run("empty falls back to default", func() {
		got, ok := s.tr.Match("")
		s.False(ok)
		s.Equal("en", got)
	})
}

func (s *TranslatorSuite) TestValid() {
	for _, raw := range []string{"fr", "es", "de-AT"} {
		s.True(s.tr.Valid(raw), raw)
	}
	for _, raw := range []string{"ja", "@@", ""} {
		s.False(s.tr.Valid(raw), raw)
	}
}

func (s *TranslatorSuite) TestTranslate() {
	s.Run("translates into requested locale", func() {
		s.Equal("Accès administrateur requis", s.tr.T("fr", KeyAdminAccessRequired))
		s.Equal("You must be logged in to view the page", s.tr.T("en", KeyLoginRequired))
	})

	s.Run("formats arguments", func() {
		s.Equal("Warning: your email address is still at example.com.", s.tr.T("en", KeyWarningYourEmail, "example.com"))
	})

	s.Run("unknown locale uses default", func() {
		s.Equal("Admin access required", s.tr.T("zz", KeyAdminAccessRequired))
	})

	s.Run("unknown key renders the key", func() {
		s.Equal("no_such_key", s.tr.T("en", "no_such_key"))
	})
}

func TestNewPutsDefaultFirst(t *testing.T) {
	tr, err := New("es", []string{"en", "es", "fr"})
	require.NoError(t, err)

	assert.Equal(t, "es", tr.Default())
	assert.Equal(t, []string{"es", "en", "fr"}, tr.Supported())
}

func TestNewRejectsInvalidLocale(t *testing.T) {
	_, err := New("not a locale", []string{"en"})
	require.Error(t, err)
}
