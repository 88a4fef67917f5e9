package ot

import (
	"fmt"

	opentracing "github.com/opentracing/opentracing-go"
)

func stringify(value interface{}) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

// dictWriter adapts an opentracing TextMapWriter to ddtracer.DictWriter.
type dictWriter struct {
	writer opentracing.TextMapWriter
}

func (w dictWriter) Set(key, value string) { w.writer.Set(key, value) }

// mapReader lets a captured header map serve as a ddtracer.DictReader.
type mapReader map[string]string

func (m mapReader) ForeachKey(handler func(key, value string) error) error {
	for key, value := range m {
		if err := handler(key, value); err != nil {
			return err
		}
	}
	return nil
}

// stringifyTags renders opentracing's interface{} tag values as strings.
func stringifyTags(tags map[string]interface{}) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]string, len(tags))
	for key, value := range tags {
		out[key] = stringify(value)
	}
	return out
}
