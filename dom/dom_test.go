package dom

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const inbox = `
<main>
  <div class="message"><div>alice@example.com</div><div>2m</div><div>Hello   there</div></div>
  <div class="message"><div>bob@example.com</div><div>5m</div><div>Invoice <b>#12</b></div></div>
  <script>var ignored = "yes";</script>
</main>`

func TestAll(t *testing.T) {
	testCases := []struct {
		description   string
		selector      string
		expected      int
		shouldBeError bool
	}{
		{description: "class selector", selector: "main div.message", expected: 2},
		{description: "nth-of-type", selector: "div.message div:nth-of-type(3)", expected: 2},
		{description: "selector group", selector: "div.message, script", expected: 3},
		{description: "no match", selector: "table", expected: 0},
		{description: "invalid selector", selector: "div[", shouldBeError: true},
	}

	doc := Parse(inbox)
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			ns, err := All(doc, tc.selector)
			if (err != nil) != tc.shouldBeError {
				t.Fatalf("expected error status of %v but got %v with error %v", tc.shouldBeError, err != nil, err)
			}
			assert.Len(t, ns, tc.expected)
		})
	}
}

func TestFirstAndText(t *testing.T) {
	doc := Parse(inbox)

	n, err := First(doc, "div.message:nth-of-type(2) div:nth-of-type(3)")
	require.NoError(t, err)
	assert.Equal(t, "Invoice #12", Text(n))
	assert.Equal(t, "Invoice <b>#12</b>", InnerHTML(n))

	main, err := First(doc, "main")
	require.NoError(t, err)
	assert.NotContains(t, Text(main), "ignored")
	assert.Contains(t, Text(main), "Hello there")

	_, err = First(doc, "table")
	assert.True(t, errors.Is(err, ErrNoMatch))
}

func TestQueriesSkipTheRoot(t *testing.T) {
	doc := Parse(`<ul><li class="x"><span class="x">in</span></li></ul>`)
	li, err := First(doc, "li")
	require.NoError(t, err)

	ns, err := All(li, ".x")
	require.NoError(t, err)
	require.Len(t, ns, 1)
	assert.Equal(t, "span", ns[0].Data)

	_, err = First(li, "li")
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestAttributes(t *testing.T) {
	doc := Parse(`<input id="q" value="a">`)
	n, err := First(doc, "#q")
	require.NoError(t, err)

	v, ok := Attr(n, "value")
	assert.True(t, ok)
	assert.Equal(t, "a", v)

	SetAttr(n, "value", "b")
	SetAttr(n, "disabled", "")
	v, _ = Attr(n, "value")
	assert.Equal(t, "b", v)
	_, ok = Attr(n, "disabled")
	assert.True(t, ok)

	RemoveAttr(n, "disabled")
	_, ok = Attr(n, "disabled")
	assert.False(t, ok)
}
