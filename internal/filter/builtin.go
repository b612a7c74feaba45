package filter

// builtinKeywords holds the literal keyword list shipped with the server for each built-in category. The
// slurs and hate_speech lists are intentionally empty in this tree: they are maintained out-of-band by trust
// & safety as a loaded dataset rather than committed to source, so a guild enabling those categories without
// also seeding custom patterns matches nothing until the dataset is deployed. spam and abusive ship a small
// illustrative set since their content is unobjectionable to keep in source.
var builtinKeywords = map[Category][]string{
	CategorySlurs:      {},
	CategoryHateSpeech: {},
	CategorySpam: {
		"click here to claim your prize",
		"wire transfer immediately",
		"limited time offer act now",
		"free gift card",
		"you have been selected winner",
	},
	CategoryAbusive: {
		"kill yourself",
		"nobody likes you",
	},
}
