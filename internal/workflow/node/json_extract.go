package node

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ExtractJSONObject 从模型输出中截取第一个 JSON 对象或数组。
// 模型经常在 JSON 前后夹杂说明文字或 ``` 代码围栏。
func ExtractJSONObject(s string) string {
	raw := strings.TrimSpace(StripCodeFences(s))
	if raw == "" {
		return raw
	}

	objStart := strings.Index(raw, "{")
	arrStart := strings.Index(raw, "[")
	start, end := -1, -1
	switch {
	case objStart >= 0 && (arrStart < 0 || objStart < arrStart):
		start = objStart
		end = strings.LastIndex(raw, "}")
	case arrStart >= 0:
		start = arrStart
		end = strings.LastIndex(raw, "]")
	}
	if start >= 0 && end > start {
		raw = raw[start : end+1]
	} else if start >= 0 {
		// 被截断的输出：保留起始位置之后的内容，交给修复逻辑
		raw = raw[start:]
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	tok, err := dec.Token()
	if err == nil {
		if d, ok := tok.(json.Delim); ok && (d == '{' || d == '[') {
			return raw
		}
	}

	// 兜底：能完整读到 EOF 就原样返回
	dec = json.NewDecoder(strings.NewReader(raw))
	for {
		_, e := dec.Token()
		if e != nil {
			if errors.Is(e, io.EOF) {
				break
			}
			return strings.TrimSpace(s)
		}
	}
	return raw
}

// DecodeLenient 截取 JSON 并解码到 v；严格解码失败时用 jsonrepair 修复尾逗号、单引号、截断等问题后重试
func DecodeLenient(s string, v any) error {
	raw := ExtractJSONObject(s)
	if raw == "" {
		return fmt.Errorf("no JSON value found in model output")
	}
	strictErr := json.Unmarshal([]byte(raw), v)
	if strictErr == nil {
		return nil
	}
	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return fmt.Errorf("decode model JSON: %w", strictErr)
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("decode repaired model JSON: %w", err)
	}
	return nil
}
