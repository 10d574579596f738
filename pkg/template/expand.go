// Package template expands {placeholder} tokens in deploy command lines.
package template

import (
	"os"
	"os/user"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Builtins returns the placeholders available to every command:
//
//	{date}      current date, YYYY-MM-DD
//	{time}      current time, HH:MM:SS
//	{datetime}  current date and time
//	{iso8601}   current time in RFC 3339
//	{unix}      Unix timestamp
//	{user}      local username
//	{hostname}  short host name
func Builtins(now time.Time) map[string]string {
	vars := map[string]string{
		"date":     now.Format("2006-01-02"),
		"time":     now.Format("15:04:05"),
		"datetime": now.Format("2006-01-02 15:04:05"),
		"iso8601":  now.Format(time.RFC3339),
		"unix":     strconv.FormatInt(now.Unix(), 10),
		"user":     "unknown",
		"hostname": "unknown",
	}
	if u, err := user.Current(); err == nil {
		vars["user"] = u.Username
	}
	if h, err := os.Hostname(); err == nil {
		vars["hostname"] = strings.Split(h, ".")[0]
	}
	return vars
}

// Expand replaces each {key} in text with vars[key], layered over the
// builtins. Unknown placeholders are left untouched, so shell constructs
// like ${HOME} or find's {} pass through.
func Expand(text string, vars map[string]string) string {
	return ExpandAt(text, vars, time.Now())
}

// ExpandAt is Expand with a fixed clock.
func ExpandAt(text string, vars map[string]string, now time.Time) string {
	if !strings.Contains(text, "{") {
		return text
	}
	all := Builtins(now)
	for k, v := range vars {
		all[k] = v
	}

	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", all[k])
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
