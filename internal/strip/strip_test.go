package strip

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripM3_RemovesScriptAndExtractsText(t *testing.T) {
	html := `<html><body><script>evil()</script><p>Hello world</p></body></html>`
	tokens := StripM3([]byte(html), nil)
	assert.Contains(t, tokens, "Hello world")
	for _, tok := range tokens {
		assert.NotContains(t, tok, "evil()")
	}
}

func TestStripM3_ExtractsNonHiddenInputValues(t *testing.T) {
	html := `<html><body>
		<input type="hidden" name="csrf" value="secret-token">
		<input type="text" name="q" value="search-term">
	</body></html>`
	tokens := StripM3([]byte(html), nil)
	assert.Contains(t, tokens, "search-term")
	assert.NotContains(t, tokens, "secret-token")
}

func TestStripM3_ExtraTagsAlsoStripped(t *testing.T) {
	html := `<html><body><nav>Menu</nav><p>Content</p></body></html>`
	withoutExtra := StripM3([]byte(html), nil)
	withExtra := StripM3([]byte(html), []string{"nav"})

	assert.Contains(t, withoutExtra, "Menu")
	assert.NotContains(t, withExtra, "Menu")
	assert.Contains(t, withExtra, "Content")
}

func TestStripM3_InvalidUTF8FallsBackToRawBody(t *testing.T) {
	raw := []byte{0xff, 0xfe, 0x00, 0x01}
	tokens := StripM3(raw, nil)
	assert.Equal(t, []string{string(raw)}, tokens)
}

func TestStripM4_JSONBodyFlattensToTokens(t *testing.T) {
	tokens := StripM4([]byte(`{"a":"1","b":"2"}`), nil)
	assert.ElementsMatch(t, []string{"a:1", "b:2"}, tokens)
}

func TestStripM4_NonJSONFallsBackToBroaderHTMLStrip(t *testing.T) {
	html := `<html><body><header>Site Header</header><p>Content</p></body></html>`
	tokens := StripM4([]byte(html), nil)
	assert.NotContains(t, tokens, "Site Header")
	assert.Contains(t, tokens, "Content")
}

func TestStripM4_TwoResponsesDifferingOnlyInStrippedTags(t *testing.T) {
	a := `<html><body><script>a()</script><nav>NavA</nav><p>Same content</p></body></html>`
	b := `<html><body><script>b()</script><nav>NavB</nav><p>Same content</p></body></html>`

	ta := StripM4([]byte(a), nil)
	tb := StripM4([]byte(b), nil)
	assert.ElementsMatch(t, ta, tb)
}
