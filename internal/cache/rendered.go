package cache

// Rendered post content, keyed by content hash and syntax theme. Post content is
// immutable per hash, so entries never go stale; editing a post changes its hash.
var renderedMarkdownCache = NewCache[string, []byte]()

func renderedKey(contentHash, syntaxTheme string) string {
	return contentHash + ":" + syntaxTheme
}

func GetRenderedMarkdown(contentHash, syntaxTheme string) ([]byte, bool) {
	return renderedMarkdownCache.Get(renderedKey(contentHash, syntaxTheme))
}

func SetRenderedMarkdown(contentHash, syntaxTheme string, html []byte) {
	renderedMarkdownCache.Set(renderedKey(contentHash, syntaxTheme), html)
}

func ClearRenderedMarkdownCache() {
	renderedMarkdownCache.Clear()
}

func RenderedMarkdownCount() int {
	return renderedMarkdownCache.Len()
}
