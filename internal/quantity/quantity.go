// Package quantity は食品リストの数量を比較可能な数値に正規化する。
//
// 数量は登録経路によって数値・数値文字列・自由入力（"2 kg" など）が混在する。
// おすすめ一覧の並び替えでは Normalize の規則で数値化し、解釈できない値は0とみなす。
// 同じ規則をストア側の宣言的な式（PostgresExpr, MongoExpr）としても提供する。
package quantity

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
)

// decimalPattern は数値として受け付ける文字列の形式。
// 前後の空白、符号、小数点を許可し、指数表記は受け付けない。
// PostgreSQL側の正規表現と同じ規則を保つこと。
var decimalPattern = regexp.MustCompile(`^\s*[+-]?([0-9]+(\.[0-9]*)?|\.[0-9]+)\s*$`)

// Normalize は数量の値を並び替え用の数値に変換する。
// 数値はそのまま返し、数値文字列は解析した値を返す。
// それ以外（解析不能な文字列、nil、真偽値など）は0を返す。エラーにはならない。
func Normalize(v any) float64 {
	f, ok := Coerce(v)
	if !ok {
		return 0
	}
	return f
}

// Coerce は数量を数値に変換し、変換できたかどうかを返す。
// 新規登録時の厳密な検証に使用する。
func Coerce(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		return finite(n)
	case float32:
		return finite(float64(n))
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		return parseDecimal(n.String())
	case string:
		return parseDecimal(n)
	default:
		return 0, false
	}
}

func parseDecimal(s string) (float64, bool) {
	if !decimalPattern.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(trimASCIISpace(s), 64)
	if err != nil {
		return 0, false
	}
	return finite(f)
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// trimASCIISpace は正規表現の \s と同じ文字集合を前後から取り除く。
func trimASCIISpace(s string) string {
	isSpace := func(c byte) bool {
		return c == ' ' || c == '\t' || c == '\n' || c == '\f' || c == '\r'
	}
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}
