package discord

// MaxMessageLength is the Discord limit for one message's content.
const MaxMessageLength = 2000

// SplitMessage breaks content into consecutive 2000-rune slices. Splitting is
// content-preserving: the chunks always concatenate back to the original, so
// a 4500-rune answer arrives as 2000/2000/500.
func SplitMessage(content string) []string {
	runes := []rune(content)
	if len(runes) <= MaxMessageLength {
		return []string{content}
	}

	chunks := make([]string, 0, (len(runes)+MaxMessageLength-1)/MaxMessageLength)

	for len(runes) > MaxMessageLength {
		chunks = append(chunks, string(runes[:MaxMessageLength]))
		runes = runes[MaxMessageLength:]
	}

	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}

	return chunks
}
