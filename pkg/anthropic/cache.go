package anthropic

// BuildCachedSystemBlocks wraps a system prompt that repeats across many
// calls (page analysis, document summaries) with a 1-hour cache breakpoint.
func BuildCachedSystemBlocks(text string) []SystemBlock {
	return []SystemBlock{
		{
			Text: text,
			CacheControl: &CacheControl{
				TTL: "1h",
			},
		},
	}
}
