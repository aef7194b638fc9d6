package greet

var Greetings = []string{
	"Hello",
	"Welcome",
	"Hi",
	"Good to see you",
	"Hey there",
	"Greetings",
	"Salutations",
	"Howdy",
	"Ahoy",
	"Yo",
	"What's up",
	"Good day",
	"Namaste",
}

var Quotes = []string{
	"Believe you can and you're halfway there. - Theodore Roosevelt",
	"The only way to do great work is to love what you do. - Steve Jobs",
	"Don't watch the clock; do what it does. Keep going. - Sam Levenson",
	"You are never too old to set another goal or to dream a new dream. - C.S. Lewis",
	"Success is not final, failure is not fatal: It is the courage to continue that counts. - Winston Churchill",
	"Don't stop when you're tired. Stop when you're done.",
	"Little things make big days.",
	"The key to success is to focus on goals, not obstacles.",
	"The secret of getting ahead is getting started. - Mark Twain",
	"The best time to plant a tree was 20 years ago. The second best time is now.",
	"Sometimes later becomes never. Do it now.",
	"Wake up with determination. Go to bed with satisfaction.",
	"Do something today that your future self will thank you for.",
	"It does not matter how slowly you go as long as you do not stop. - Confucius",
	"Fall seven times and stand up eight. - Japanese Proverb",
	"If opportunity doesn't knock, build a door. - Milton Berle",
	"Act as if what you do makes a difference. It does. - William James",
	"Don't count the days, make the days count. - Muhammad Ali",
	"It always seems impossible until it's done. - Nelson Mandela",
	"Don't wait. The time will never be just right. - Napoleon Hill",
}

var DadJokes = []string{
	"Why did the scarecrow win an award? Because he was outstanding in his field!",
	"Why don't skeletons fight each other? They don't have the guts.",
	"Want to hear a joke about construction? I'm still working on it.",
	"I used to play piano by ear, but now I use my hands.",
	"I only know 25 letters of the alphabet. I don't know y.",
	"Why did the math book look sad? Because it had too many problems.",
	"Why did the coffee file a police report? It got mugged.",
}

var Mine = []string{
	"Fear is the mind killer",
	"The night is dark and full of terrors",
}

// Lists maps a preference category to its content.
var Lists = map[string][]string{
	"quotes": Quotes,
	"dad":    DadJokes,
	"mine":   Mine,
}

// Categories are the accepted preference categories.
var Categories = []string{"quotes", "dad", "mine"}
