package session

import (
	"strings"
	"time"
)

// Demo replies are fully deterministic: the trimmed, lowercased input is
// matched against topic buckets in order and the first hit wins. Short
// keywords match whole words only so "hi" does not fire inside "which".

const fallbackReply = "That's a wonderful question! 🤔 I love how curious you are! " +
	"Every question is a chance to learn something new. Try asking me about animals, " +
	"space, the weather, or numbers, and let's explore together!"

// limitReply is appended once the demo allowance runs out.
const limitReply = "I'm having so much fun chatting with you! 🌟 You've used all your " +
	"free messages for today. Ask a grown-up to create your free account, and then we " +
	"can keep exploring everything together!"

const (
	minTypingDelay = 500 * time.Millisecond
	maxTypingDelay = 1500 * time.Millisecond

	// limitDelay paces the scripted limit message like a quick reply.
	limitDelay = 600 * time.Millisecond

	// perRuneDelay approximates typing cadence for canned replies.
	perRuneDelay = 5 * time.Millisecond
)

type topic struct {
	name     string
	keywords []string
	reply    string
}

var topics = []topic{
	{
		name:     "greetings",
		keywords: []string{"hi", "hey", "hello", "howdy", "good morning", "good afternoon"},
		reply: "Hi there, explorer! 👋 I'm Ollie, your learning buddy. " +
			"Ask me anything about animals, space, numbers, or the world around you!",
	},
	{
		name:     "plants",
		keywords: []string{"plant", "tree", "flower", "seed", "leaf", "photosynthesis"},
		reply: "Plants are amazing! 🌱 They make their own food from sunlight, water, and " +
			"air using something called photosynthesis. The green color in leaves comes from " +
			"chlorophyll, which catches the sunlight like a tiny solar panel!",
	},
	{
		name:     "space",
		keywords: []string{"black hole", "space", "planet", "star", "galaxy", "moon", "sun", "rocket", "astronaut"},
		reply: "Space is full of wonders! 🚀 Black holes are places where gravity is so " +
			"strong that not even light can escape. They form when giant stars run out of fuel " +
			"and collapse. Don't worry though, the nearest one is very, very far away!",
	},
	{
		name:     "dinosaurs",
		keywords: []string{"dinosaur", "t-rex", "trex", "fossil", "triceratops"},
		reply: "Roar! 🦖 Dinosaurs lived millions of years ago, long before people. " +
			"Some were as small as chickens and some were longer than three school buses! " +
			"We know about them from fossils, which are like nature's time capsules.",
	},
	{
		name:     "ocean",
		keywords: []string{"ocean", "sea", "fish", "shark", "whale", "dolphin", "octopus", "coral"},
		reply: "The ocean is a huge underwater world! 🌊 Blue whales are the biggest " +
			"animals that have ever lived, even bigger than dinosaurs! And octopuses have " +
			"three hearts and can change color to hide. The sea is full of surprises!",
	},
	{
		name:     "land animals",
		keywords: []string{"lion", "tiger", "elephant", "giraffe", "bear", "monkey", "zebra", "animal"},
		reply: "Animals are incredible! 🦁 Elephants are the largest land animals and " +
			"they can talk to each other with rumbles too low for us to hear. Giraffes have " +
			"the same number of neck bones as you, just much, much longer!",
	},
	{
		name:     "pets",
		keywords: []string{"dog", "cat", "puppy", "kitten", "hamster", "pet"},
		reply: "Pets make wonderful friends! 🐶 Dogs can smell about ten thousand times " +
			"better than people, and cats purr at a frequency that can even help them heal. " +
			"Taking care of a pet teaches us to be kind and responsible!",
	},
	{
		name:     "birds",
		keywords: []string{"bird", "eagle", "owl", "penguin", "parrot", "feather"},
		reply: "Birds are dinosaurs' closest living relatives! 🦅 Owls can turn their " +
			"heads almost all the way around, and penguins are birds that fly underwater " +
			"instead of in the sky. Feathers keep them warm and help them zoom around!",
	},
	{
		name:     "insects",
		keywords: []string{"insect", "bug", "butterfly", "bee", "ant", "spider", "ladybug"},
		reply: "Tiny creatures, big wonders! 🐝 Bees dance to tell their friends where " +
			"flowers are, and ants can carry things fifty times heavier than themselves. " +
			"Butterflies taste with their feet, how silly is that?",
	},
	{
		name:     "fractions",
		keywords: []string{"fraction", "half", "quarter", "third"},
		reply: "Fractions are pieces of a whole! 🍕 If you cut a pizza into four equal " +
			"slices and eat one, you ate one quarter. Two quarters make one half. " +
			"You use fractions every time you share something fairly!",
	},
	{
		name:     "math",
		keywords: []string{"math", "plus", "minus", "add", "subtract", "multiply", "divide", "number", "count"},
		reply: "Math is everywhere! 🔢 It helps us share snacks fairly, build towers, " +
			"and even land rockets on the moon. Here's a trick: to add 9 to a number, add 10 " +
			"and take 1 away. Try it!",
	},
	{
		name:     "water cycle",
		keywords: []string{"water cycle", "evaporation", "condensation", "precipitation"},
		reply: "Water goes on a never-ending journey! 💧 The sun warms up water and turns " +
			"it into vapor (evaporation), the vapor makes clouds (condensation), and then it " +
			"falls back down as rain or snow (precipitation). The same water keeps going " +
			"around and around!",
	},
	{
		name:     "volcanoes",
		keywords: []string{"volcano", "lava", "erupt", "magma"},
		reply: "Volcanoes are mountains with a fiery secret! 🌋 Deep underground, melted " +
			"rock called magma pushes up, and when it bursts out it's called lava. " +
			"Some islands, like Hawaii, were built entirely by volcanoes!",
	},
	{
		name:     "rainbows",
		keywords: []string{"rainbow", "prism"},
		reply: "Rainbows are made of sunlight and raindrops! 🌈 When light passes through " +
			"water drops, it splits into seven colors: red, orange, yellow, green, blue, " +
			"indigo, and violet. You need the sun behind you and rain in front to spot one!",
	},
	{
		name:     "electricity",
		keywords: []string{"electricity", "electric", "battery", "circuit", "lightning"},
		reply: "Electricity is moving energy! ⚡ It flows through wires like water through " +
			"a hose and powers your lights, games, and fridge. Lightning is a giant spark of " +
			"electricity in the sky, hotter than the surface of the sun!",
	},
	{
		name:     "ancient history",
		keywords: []string{"ancient", "egypt", "pyramid", "pharaoh", "rome", "castle", "knight"},
		reply: "Let's travel back in time! 🏛️ The ancient Egyptians built the pyramids " +
			"more than four thousand years ago, without any trucks or cranes. They also " +
			"invented paper made from a plant called papyrus!",
	},
	{
		name:     "body",
		keywords: []string{"body", "heart", "brain", "bones", "muscle", "healthy", "germs", "blood"},
		reply: "Your body is amazing! ❤️ Your heart beats about one hundred thousand " +
			"times a day, and your brain sends messages faster than a race car. Eating well, " +
			"sleeping, and playing outside keep your body super strong!",
	},
	{
		name:     "weather",
		keywords: []string{"weather", "rain", "storm", "tornado", "snow", "wind", "cloud"},
		reply: "Weather is always changing! ⛅ Clouds are made of millions of tiny water " +
			"drops floating in the sky. Snowflakes always have six sides, and no two are " +
			"exactly alike. What's the weather like where you are today?",
	},
}

// cannedReply matches the user's input against the topic buckets and
// returns the bucket reply, or the generic encouraging fallback.
func cannedReply(input string) string {
	lower := strings.ToLower(strings.TrimSpace(input))
	words := fieldSet(lower)

	for _, t := range topics {
		for _, kw := range t.keywords {
			if matches(lower, words, kw) {
				return t.reply
			}
		}
	}
	return fallbackReply
}

// matches checks one keyword: phrases and longer keywords match by
// containment, short ones only as whole words.
func matches(input string, words map[string]bool, keyword string) bool {
	if strings.Contains(keyword, " ") || len(keyword) >= 5 {
		return strings.Contains(input, keyword)
	}
	return words[keyword]
}

func fieldSet(input string) map[string]bool {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '.', ',', '!', '?', ';', ':', '"', '\'':
			return ' '
		}
		return r
	}, input)

	words := make(map[string]bool)
	for _, w := range strings.Fields(cleaned) {
		words[w] = true
	}
	return words
}

// typingDelay paces a canned reply proportionally to its length, clamped
// to a natural-feeling range.
func typingDelay(reply string) time.Duration {
	d := minTypingDelay + time.Duration(len([]rune(reply)))*perRuneDelay
	if d > maxTypingDelay {
		return maxTypingDelay
	}
	return d
}
