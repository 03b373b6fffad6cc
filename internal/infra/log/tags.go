package log

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/rs/zerolog"
)

// LabelsKey is the tag whose value is expanded into one "label#<item>" segment per item.
const LabelsKey = "labels"

// Tag is one key/value prefix of a formatted log message.
type Tag struct {
	Key   string
	Value any
}

func T(key string, value any) Tag { return Tag{Key: key, Value: value} }

// Labels is shorthand for a labels tag.
func Labels(items ...string) Tag { return Tag{Key: LabelsKey, Value: items} }

// FormatForLog prefixes msg with "<KEY>#<value> - " for every tag in order. The labels tag
// renders each of its items as "label#<item> - " instead.
func FormatForLog(msg string, tags ...Tag) string {
	var b strings.Builder
	for _, t := range tags {
		if !strings.EqualFold(t.Key, LabelsKey) {
			fmt.Fprintf(&b, "%s#%v - ", strings.ToUpper(t.Key), t.Value)
			continue
		}
		for _, item := range labelItems(t.Value) {
			fmt.Fprintf(&b, "label#%v - ", item)
		}
	}
	b.WriteString(msg)
	return b.String()
}

func labelItems(v any) []any {
	switch items := v.(type) {
	case nil:
		return nil
	case []any:
		return items
	case []string:
		out := make([]any, len(items))
		for i, s := range items {
			out[i] = s
		}
		return out
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out
	}
	return []any{v}
}

// TagLogger formats messages with FormatForLog before handing them to zerolog.
type TagLogger struct {
	l Logger
}

func NewTagLogger(l Logger) *TagLogger { return &TagLogger{l: l} }

// Log writes msg at level; the message is only formatted when the level is enabled.
func (t *TagLogger) Log(level zerolog.Level, msg string, tags ...Tag) {
	e := t.l.WithLevel(level)
	if !e.Enabled() {
		return
	}
	e.Msg(FormatForLog(msg, tags...))
}

func (t *TagLogger) Debug(msg string, tags ...Tag) { t.Log(zerolog.DebugLevel, msg, tags...) }
func (t *TagLogger) Info(msg string, tags ...Tag)  { t.Log(zerolog.InfoLevel, msg, tags...) }
func (t *TagLogger) Warn(msg string, tags ...Tag)  { t.Log(zerolog.WarnLevel, msg, tags...) }
func (t *TagLogger) Error(msg string, tags ...Tag) { t.Log(zerolog.ErrorLevel, msg, tags...) }
