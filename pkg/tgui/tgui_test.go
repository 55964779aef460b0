package tgui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestData(t *testing.T) {
	assert.Equal(t, "rep:save", Data("rep", "save", ""))
	assert.Equal(t, "snz:900:abc", Data(" snz ", "900", "abc"))

	ns, action, payload, ok := ParseData("rep:tog:a:b")
	require.True(t, ok)
	assert.Equal(t, "rep", ns)
	assert.Equal(t, "tog", action)
	assert.Equal(t, "a:b", payload)

	_, _, payload, ok = ParseData("rep:once")
	require.True(t, ok)
	assert.Empty(t, payload)

	for _, bad := range []string{"", "rep", ":x", "rep:"} {
		_, _, _, ok := ParseData(bad)
		assert.False(t, ok, bad)
	}

	_, err := CheckedData("ns", "act", string(make([]byte, MaxDataLen)))
	assert.ErrorIs(t, err, ErrDataTooLong)
}

func TestEscapingAndTrunc(t *testing.T) {
	assert.Equal(t, "<b>a &lt;b&gt;</b>", B("a <b>").String())
	assert.Equal(t, "<code>x&amp;y</code>", Code("x&y").String())
	assert.Equal(t, "a | b", JoinH(" | ", "a", " ", "b").String())

	assert.Equal(t, "abc", TruncRunes("abc", 3))
	assert.Equal(t, "пр…", TruncRunes("привет", 2))
	assert.Equal(t, "", TruncRunes("abc", 0))
}

func TestBuilder(t *testing.T) {
	kb := NewInline().Grid(2, Btn("a", "x:a"), Btn("b", "x:b"), Btn("c", "x:c"))
	assert.Equal(t, 2, kb.Rows())

	msg := New().Title("⏰", "Due <now>").KV("Repeat", "daily").Bullets("one", " ").Inline(kb).Build()
	assert.Equal(t, "⏰ <b>Due &lt;now&gt;</b>\n• <b>Repeat</b>: daily\n• one", msg.Text)
	assert.Equal(t, "HTML", msg.Opt.ParseMode)
	assert.True(t, msg.Opt.DisablePreview)
	assert.Same(t, kb.Markup(), msg.Opt.ReplyMarkup)

	plain := New().Line("x").Inline(NewInline()).Build()
	assert.Nil(t, plain.Opt.ReplyMarkup)
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	p := Paginate(items, 1, 2)
	assert.Equal(t, []int{3, 4}, p.Items)
	assert.Equal(t, 2, p.From)
	assert.True(t, p.HasPrev)
	assert.True(t, p.HasNext)
	assert.Equal(t, "2/3", p.Label())

	last := Paginate(items, 9, 2)
	assert.Equal(t, 2, last.Index)
	assert.Equal(t, []int{5}, last.Items)
	assert.False(t, last.HasNext)

	empty := Paginate([]int(nil), 0, 2)
	assert.Empty(t, empty.Items)
	assert.Equal(t, "1/1", empty.Label())
}

func TestTTLMap(t *testing.T) {
	now := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewTTLMap[string, int](time.Minute).WithClock(func() time.Time { return now })

	m.Put("a", 1)
	v, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	now = now.Add(2 * time.Minute)
	_, ok = m.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())

	m.Put("b", 2)
	m.Delete("b")
	_, ok = m.Get("b")
	assert.False(t, ok)
}

func TestTTLMapEvictsOldest(t *testing.T) {
	now := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewTTLMap[int, string](time.Hour).WithMax(2).WithClock(func() time.Time { return now })
	m.Put(1, "one")
	now = now.Add(time.Second)
	m.Put(2, "two")
	now = now.Add(time.Second)
	m.Put(3, "three")

	_, ok := m.Get(1)
	assert.False(t, ok)
	_, ok = m.Get(3)
	assert.True(t, ok)
	assert.Equal(t, 2, m.Len())
}
