package domainerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
)

// DomainErrorsSuite tests the domain error primitives.
//
// Justification: these primitives carry failure classification across every
// trust boundary in the pipeline. Unit tests ensure invariants like "wrapped
// domain errors preserve original code" and "errors.Is matches by code".
type DomainErrorsSuite struct {
	suite.Suite
}

func TestDomainErrorsSuite(t *testing.T) {
	suite.Run(t, new(DomainErrorsSuite))
}

func (s *DomainErrorsSuite) TestErrorInterface() {
	s.Run("returns message when present", func() {
		err := &Error{Code: CodeAuth, Message: "invalid api key"}
		s.Equal("invalid api key", err.Error())
	})

	s.Run("returns code when message is empty", func() {
		err := &Error{Code: CodeTimeout}
		s.Equal("timeout", err.Error())
	})
}

func (s *DomainErrorsSuite) TestUnwrap() {
	inner := errors.New("connection refused")
	err := &Error{Code: CodeAPI, Message: "companies listing failed", Err: inner}
	s.Equal(inner, err.Unwrap())
	s.True(errors.Is(err, inner))
}

func (s *DomainErrorsSuite) TestWrapPreservesCode() {
	original := New(CodeValidation, "date_from after date_to")
	wrapped := Wrap(original, CodeInternal, "run rejected")

	s.True(HasCode(wrapped, CodeValidation))
	s.False(HasCode(wrapped, CodeInternal))
}

func (s *DomainErrorsSuite) TestWrapPlainError() {
	wrapped := Wrap(errors.New("eof"), CodeAPI, "malformed response")
	s.True(HasCode(wrapped, CodeAPI))
}

func (s *DomainErrorsSuite) TestIsMatchesByCode() {
	s.True(errors.Is(New(CodeTimeout, "report job"), &Error{Code: CodeTimeout}))
	s.False(errors.Is(New(CodeTimeout, "report job"), &Error{Code: CodeAPI}))
}

func (s *DomainErrorsSuite) TestHasCodeNonDomainError() {
	s.False(HasCode(errors.New("plain"), CodeAPI))
	s.False(HasCode(nil, CodeAPI))
}
