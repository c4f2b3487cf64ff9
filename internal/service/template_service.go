// internal/service/template_service.go
package service

import (
	"strings"

	"github.com/unclebandit/smsleopard-agent/internal/model"
	"github.com/unclebandit/smsleopard-agent/internal/phone"
)

// RenderTemplate replaces {key} placeholders with data values. Empty values
// render as the fallback given under the "" key, if any.
func RenderTemplate(template string, data map[string]string) string {
	result := template
	for k, v := range data {
		if k == "" {
			continue
		}
		if v == "" {
			v = data[""]
		}
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}
	return result
}

// customerFields are the placeholders available to campaign templates.
func customerFields(c *model.Customer) map[string]string {
	first := c.FirstName
	if first == "Unknown" {
		first = ""
	}
	last := c.LastName
	if last == "Customer" {
		last = ""
	}
	return map[string]string{
		"first_name":   first,
		"last_name":    last,
		"phone_number": phone.Format(c.PhoneNumber),
		"":             "there",
	}
}
