// Package selector decides whether a recipient should be thanked and with
// which message.
package selector

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"favthanker/pkg/models"
	"favthanker/pkg/site"
	"favthanker/pkg/web"
)

// Skip reasons
const (
	ReasonPriorComment = "prior comment on profile"
	ReasonNoShoutBox   = "shout box unavailable"
)

// Decision is the outcome of Decide
type Decision struct {
	Skip   bool
	Reason string
	// Message is the text as configured, for the audit log
	Message string
	// Encoded is Message in the site's single-byte encoding, for submission
	Encoded string
	// Group names the group the message came from, or models.NoGroup
	Group string
}

// Selector holds the operator's message pool and groups for one run
type Selector struct {
	operator string
	messages []string
	groups   []models.Group
	rng      *rand.Rand
}

// New validates the pools and creates a Selector
func New(operator string, messages []string, groups []models.Group) (*Selector, error) {
	if len(messages) == 0 {
		return nil, errors.New("default message pool is empty")
	}
	for _, g := range groups {
		if len(g.Messages) == 0 {
			return nil, fmt.Errorf("group %q has no messages", g.Name)
		}
	}
	return &Selector{
		operator: operator,
		messages: append([]string(nil), messages...),
		groups:   append([]models.Group(nil), groups...),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Seed makes message choice deterministic
func (s *Selector) Seed(seed int64) {
	s.rng = rand.New(rand.NewSource(seed))
}

// Decide inspects the recipient's profile page and picks a message when the
// recipient is eligible
func (s *Selector) Decide(recipient string, profile *web.Page) Decision {
	if site.HasCommentFrom(profile.Body(), s.operator, recipient) {
		return Decision{Skip: true, Reason: ReasonPriorComment}
	}
	if len(profile.Forms()) < site.MinProfileForms {
		return Decision{Skip: true, Reason: ReasonNoShoutBox}
	}

	msg, group := s.Choose(recipient)
	return Decision{Message: msg, Encoded: Encode(msg), Group: group}
}

// Choose picks uniformly from the first group containing recipient, or from
// the default pool when no group does
func (s *Selector) Choose(recipient string) (message, group string) {
	for _, g := range s.groups {
		if g.Contains(recipient) {
			return g.Messages[s.rng.Intn(len(g.Messages))], g.Name
		}
	}
	return s.messages[s.rng.Intn(len(s.messages))], models.NoGroup
}

var latin1 = encoding.ReplaceUnsupported(charmap.ISO8859_1.NewEncoder())

// Encode converts msg to ISO-8859-1 bytes held in a string. Characters
// outside the charset are replaced, never rejected.
func Encode(msg string) string {
	out, err := latin1.String(msg)
	if err != nil {
		return msg
	}
	return out
}
