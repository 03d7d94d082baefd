package normalizer

import (
	"bytes"
	"math"
	"regexp"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// 上游抓取器输出的数字经常是带千分位或 K/M/B 后缀的字符串
var numericText = regexp.MustCompile(`^([+-]?[0-9][0-9.,_ ]*)([kmb])?$`)

// flexNumber 接受 JSON 数字或数字字符串，无法识别时视为缺失，不报错
type flexNumber struct {
	value *float64
}

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	n.value = parseNumber(data)
	return nil
}

func parseNumber(data []byte) *float64 {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		return nil
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return nil
		}
		return parseNumericString(str)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func parseNumericString(s string) *float64 {
	s = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, "\u00a0", " ")))
	m := numericText.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	digits, ok := canonicalDigits(strings.NewReplacer(" ", "", "_", "").Replace(m[1]), m[2] != "")
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(digits, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	switch m[2] {
	case "k":
		f *= 1e3
	case "m":
		f *= 1e6
	case "b":
		f *= 1e9
	}
	return &f
}

// canonicalDigits 把 "." 和 "," 统一成 ParseFloat 能识别的形式
// 两种符号都出现时靠后的是小数点；只出现一种且仅一次时，后面恰好三位数字视为千分位，
// 带 K/M/B 后缀时一律视为小数点；千分位分组必须是三位，否则视为无法识别
func canonicalDigits(s string, suffixed bool) (string, bool) {
	lastDot, lastComma := strings.LastIndexByte(s, '.'), strings.LastIndexByte(s, ',')

	decimal := -1
	switch {
	case lastDot >= 0 && lastComma >= 0:
		decimal = max(lastDot, lastComma)
	case lastDot >= 0:
		decimal = decimalMark(s, '.', lastDot, suffixed)
	case lastComma >= 0:
		decimal = decimalMark(s, ',', lastComma, suffixed)
	}

	intPart, frac := s, ""
	if decimal >= 0 {
		intPart, frac = s[:decimal], s[decimal+1:]
		if frac == "" || strings.ContainsAny(frac, ".,") || strings.IndexByte(intPart, s[decimal]) >= 0 {
			return "", false
		}
	}

	groups := strings.FieldsFunc(intPart, func(r rune) bool { return r == '.' || r == ',' })
	if strings.Count(intPart, ".")+strings.Count(intPart, ",") != len(groups)-1 {
		return "", false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return "", false
		}
	}

	out := strings.Join(groups, "")
	if decimal >= 0 {
		out += "." + frac
	}
	return out, true
}

// decimalMark 只出现一种分隔符时判断它是否为小数点，返回其位置，千分位返回 -1
func decimalMark(s string, sep byte, last int, suffixed bool) int {
	if strings.Count(s, string(sep)) > 1 {
		return -1
	}
	if suffixed || len(s)-last-1 != 3 {
		return last
	}
	return -1
}

// flexString 只接受非空字符串
type flexString struct {
	value *string
}

func (s *flexString) UnmarshalJSON(data []byte) error {
	s.value = nil
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return nil
	}
	if str = strings.TrimSpace(str); str != "" {
		s.value = &str
	}
	return nil
}

// flexText 字符串原样保留，数字/对象/数组压缩成 JSON 文本
type flexText struct {
	value *string
}

func (t *flexText) UnmarshalJSON(data []byte) error {
	t.value = nil
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] == '"' {
		var str string
		if err := json.Unmarshal(trimmed, &str); err == nil {
			if str = strings.TrimSpace(str); str != "" {
				t.value = &str
			}
		}
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil
	}
	text := buf.String()
	t.value = &text
	return nil
}

func firstNumber(candidates ...flexNumber) *float64 {
	for _, c := range candidates {
		if c.value != nil {
			return c.value
		}
	}
	return nil
}

func firstString(candidates ...flexString) *string {
	for _, c := range candidates {
		if c.value != nil {
			return c.value
		}
	}
	return nil
}
