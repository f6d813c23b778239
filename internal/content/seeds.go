package content

// seedClips is the curated baseline pool. The service can post from a cold
// database; ingested library rows extend this list rather than replace it.
var seedClips = []Candidate{
	{LibraryID: "seed-001", VideoID: "dQhw6rtYkdA", SourceURL: "https://www.youtube.com/embed/dQhw6rtYkdA", Category: "bluff", Description: "River bluff with ten high gets there", Duration: 42},
	{LibraryID: "seed-002", VideoID: "x3mKQ8pLnvU", SourceURL: "https://www.youtube.com/embed/x3mKQ8pLnvU", Category: "badbeat", Description: "Aces cracked by a one-outer on the river", Duration: 38},
	{LibraryID: "seed-003", VideoID: "Zr9FqnWm2cE", SourceURL: "https://www.youtube.com/embed/Zr9FqnWm2cE", Category: "hero-call", Description: "Bottom pair hero call against a triple barrel", Duration: 55},
	{LibraryID: "seed-004", VideoID: "f8JtNb0ypQs", SourceURL: "https://www.youtube.com/embed/f8JtNb0ypQs", Category: "funny", Description: "Table talk goes completely sideways", StartSec: 12, Duration: 30},
	{LibraryID: "seed-005", VideoID: "Km4vX2cRq7g", SourceURL: "https://www.youtube.com/embed/Km4vX2cRq7g", Category: "cooler", Description: "Set over set over set, all the money goes in", Duration: 61},
	{LibraryID: "seed-006", VideoID: "pW7yHs3TnLo", SourceURL: "https://www.youtube.com/embed/pW7yHs3TnLo", Category: "bluff", Description: "Quads slowplayed into a full house", Duration: 47},
	{LibraryID: "seed-007", VideoID: "Uc5RmJx8aYw", SourceURL: "https://www.youtube.com/embed/Uc5RmJx8aYw", Category: "badbeat", Description: "Flopped straight loses to runner runner flush", Duration: 35},
	{LibraryID: "seed-008", VideoID: "nB2gVt6MzKc", SourceURL: "https://www.youtube.com/embed/nB2gVt6MzKc", Category: "hero-call", Description: "King high call for a tournament life", Duration: 58},
	{LibraryID: "seed-009", VideoID: "qL9wPd4XsRe", SourceURL: "https://www.youtube.com/embed/qL9wPd4XsRe", Category: "funny", Description: "Dealer misreads the board twice in one hand", StartSec: 5, Duration: 28},
	{LibraryID: "seed-010", VideoID: "tG3kCn7YbVm", SourceURL: "https://www.youtube.com/embed/tG3kCn7YbVm", Category: "cooler", Description: "Royal flush against a straight flush", Duration: 44},
}
