// Package nlu classifies client messages into a fixed set of intents by keyword.
package nlu

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Intent is the classified purpose of a message.
type Intent int

const (
	Unknown Intent = iota
	Greeting
	BookAppointment
	CancelAppointment
	RemarkAppointment
)

func (i Intent) String() string {
	switch i {
	case Greeting:
		return "greeting"
	case BookAppointment:
		return "book"
	case CancelAppointment:
		return "cancel"
	case RemarkAppointment:
		return "remark"
	default:
		return "unknown"
	}
}

var (
	bookKeywords = []string{
		"agendar", "marcar", "marcação", "marcar horário", "horário", "horario",
		"quero agendar", "preciso agendar", "quer agendar", "quer marcar",
		"gostaria de marcar", "gostaria de agendar", "novo agendamento",
	}
	cancelKeywords = []string{
		"cancelar", "desmarcar", "desmarcar horário", "cancelamento", "não vou",
		"não posso", "não dá", "nem vou", "esqueci", "marcar diferente", "outra data",
		"outro horário", "outro dia", "voltar", "recomeçar", "começar de novo",
	}
	remarkKeywords = []string{
		"remarcar", "mudar", "trocar", "alterar", "modificar", "adiar", "antecipar",
		"outra hora", "outro horário", "não é possível", "precisa mudar", "posso mudar",
		"acha que muda",
	}
	greetingKeywords = []string{
		"oi", "olá", "ola", "bom dia", "boa tarde", "boa noite", "e aí", "eae",
		"tudo bem", "tudo certo", "opa", "oopa", "hey", "opa blz", "blz", "e ai",
		"tudo bem com você",
	}
)

// rules are checked in order; the first intent with a matching keyword wins.
var rules = []struct {
	intent   Intent
	keywords []string
}{
	{BookAppointment, bookKeywords},
	{CancelAppointment, cancelKeywords},
	{RemarkAppointment, remarkKeywords},
	{Greeting, greetingKeywords},
}

// shortKeyword keywords must also end on a word boundary ("oi" must not match "oito").
const shortKeyword = 4

// Classify returns the intent of text. It never fails.
func Classify(text string) Intent {
	normalized := Normalize(text)
	if normalized == "" {
		return Unknown
	}
	for _, r := range rules {
		for _, kw := range r.keywords {
			if containsKeyword(normalized, kw) {
				return r.intent
			}
		}
	}
	return Unknown
}

// Normalize lower-cases text with Portuguese rules and trims surrounding space.
func Normalize(text string) string {
	return strings.TrimSpace(cases.Lower(language.BrazilianPortuguese).String(text))
}

// containsKeyword reports whether kw occurs in text starting at a word boundary, so
// "marcar" matches "quero marcar" but not "desmarcar".
func containsKeyword(text, kw string) bool {
	needEnd := utf8.RuneCountInString(kw) < shortKeyword
	offset := 0
	for {
		idx := strings.Index(text[offset:], kw)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(kw)
		if isBoundaryBefore(text, start) && (!needEnd || isBoundaryAfter(text, end)) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		offset = start + size
	}
}

func isBoundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func isBoundaryAfter(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// Words splits normalized text into letter/digit runs.
func Words(text string) []string {
	return strings.FieldsFunc(Normalize(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
