package page

import (
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	markupPolicyOnce sync.Once
	markupPolicy     *bluemonday.Policy
)

// Sanitize cleans markup before it is written into a region or button.
// Provider error messages and configured labels both pass through here;
// icon tags such as <i class="bi bi-envelope"></i> survive, scripts and
// event handlers do not.
func Sanitize(markup string) string {
	trimmed := strings.TrimSpace(markup)
	if trimmed == "" {
		return ""
	}
	return markupSanitizer().Sanitize(trimmed)
}

func markupSanitizer() *bluemonday.Policy {
	markupPolicyOnce.Do(func() {
		policy := bluemonday.UGCPolicy()
		policy.AllowElements("i", "span", "strong", "em", "br")
		policy.AllowAttrs("class").
			Matching(regexp.MustCompile(`^[A-Za-z0-9_\- ]+$`)).
			OnElements("i", "span", "strong", "em")
		policy.AllowAttrs("aria-hidden").Matching(regexp.MustCompile(`^(true|false)$`)).OnElements("i", "span")
		markupPolicy = policy
	})
	return markupPolicy
}
