package security

import "testing"

func TestSanitizeText(t *testing.T) {
	sanitizer := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "プレーンテキストはそのまま", input: "Brown Rice", want: "Brown Rice"},
		{name: "scriptタグは内容ごと除去される", input: `Rice<script>alert("x")</script>`, want: "Rice"},
		{name: "装飾タグは除去されテキストが残る", input: "<b>Fresh</b> bread", want: "Fresh bread"},
		{name: "イベント属性を含むタグも除去される", input: `<img src=x onerror="alert(1)">Milk`, want: "Milk"},
		{name: "アンパサンドはエスケープされない", input: "Rice & beans", want: "Rice & beans"},
		{name: "前後の空白を除去する", input: "  Soup  ", want: "Soup"},
		{name: "空文字列", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizer.SanitizeText(tt.input); got != tt.want {
				t.Errorf("SanitizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeText_Idempotent(t *testing.T) {
	sanitizer := NewTextSanitizer()
	input := `<p>Home-made <em>curry</em> & rice</p>`

	first := sanitizer.SanitizeText(input)
	second := sanitizer.SanitizeText(first)
	if first != second {
		t.Errorf("SanitizeText is not idempotent: %q != %q", first, second)
	}
}

func TestSanitizeURL(t *testing.T) {
	sanitizer := NewTextSanitizer()

	tests := []struct {
		input string
		want  string
	}{
		{"https://i.ibb.co/rice.png", "https://i.ibb.co/rice.png"},
		{"http://example.com/a.jpg", "http://example.com/a.jpg"},
		{"javascript:alert(1)", ""},
		{"data:image/png;base64,AAAA", ""},
		{"/relative/path.png", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := sanitizer.SanitizeURL(tt.input); got != tt.want {
			t.Errorf("SanitizeURL(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
