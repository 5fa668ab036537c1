package services

import (
	"strings"

	"github.com/megu-dl/megu/internal/core/domain"
)

// ContentFilter narrows a stream of discovered content.
// Filters consume the input channel and stream survivors on the
// returned channel, which is closed when the input is exhausted.
type ContentFilter func(<-chan domain.Content) <-chan domain.Content

// BestContent keeps, per content ID, only the variant with the maximum
// quality; ties keep the first-seen variant. IDs are emitted in
// first-seen order.
//
// This filter is eager: the winner for an ID cannot be known until every
// candidate for that ID has been seen, so the whole input stream is
// drained before the first survivor is emitted.
func BestContent(in <-chan domain.Content) <-chan domain.Content {
	out := make(chan domain.Content)

	go func() {
		defer close(out)

		order := make([]string, 0)
		best := make(map[string]domain.Content)

		for content := range in {
			current, seen := best[content.ID]
			if !seen {
				order = append(order, content.ID)
				best[content.ID] = content
				continue
			}
			if content.Quality > current.Quality {
				best[content.ID] = content
			}
		}

		for _, id := range order {
			out <- best[id]
		}
	}()

	return out
}

// AllContent passes every discovered content through unchanged.
func AllContent(in <-chan domain.Content) <-chan domain.Content {
	return in
}

// ByType keeps only content with the given mimetype.
func ByType(mimetype string) ContentFilter {
	return keep(func(c domain.Content) bool {
		return c.Type == mimetype
	})
}

// ByQuality keeps only content with the given quality.
func ByQuality(quality float64) ContentFilter {
	return keep(func(c domain.Content) bool {
		return c.Quality == quality
	})
}

// ByName keeps only content whose name contains the given fragment,
// case-insensitively.
func ByName(fragment string) ContentFilter {
	want := strings.ToLower(fragment)
	return keep(func(c domain.Content) bool {
		return strings.Contains(strings.ToLower(c.Name), want)
	})
}

// Compose chains filters left to right.
func Compose(filters ...ContentFilter) ContentFilter {
	return func(in <-chan domain.Content) <-chan domain.Content {
		stream := in
		for _, f := range filters {
			stream = f(stream)
		}
		return stream
	}
}

// keep builds a streaming filter from a predicate.
func keep(pred func(domain.Content) bool) ContentFilter {
	return func(in <-chan domain.Content) <-chan domain.Content {
		out := make(chan domain.Content)

		go func() {
			defer close(out)
			for content := range in {
				if pred(content) {
					out <- content
				}
			}
		}()

		return out
	}
}
