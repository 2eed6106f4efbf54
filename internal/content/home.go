package content

import "time"

// Language is an interface language offered during onboarding.
type Language struct {
	Code        string
	Name        string
	EnglishName string
}

// Languages in display order. The first one is the default.
var Languages = []Language{
	{Code: "hindi", Name: "हिंदी", EnglishName: "Hindi"},
	{Code: "english", Name: "English", EnglishName: "English"},
	{Code: "bengali", Name: "বাংলা", EnglishName: "Bengali"},
	{Code: "gujarati", Name: "ગુજરાતી", EnglishName: "Gujarati"},
}

// ValidLanguage reports whether code is one of Languages.
func ValidLanguage(code string) bool {
	for _, l := range Languages {
		if l.Code == code {
			return true
		}
	}
	return false
}

// Prompt is a one-tap chat message.
type Prompt struct {
	Text  string
	Hindi string
	Emoji string
}

// QuickPrompts are offered above the chat input.
var QuickPrompts = []Prompt{
	{Text: "I feel anxious", Hindi: "मैं चिंतित हूं", Emoji: "😰"},
	{Text: "Tell me about nutrition", Hindi: "पोषण के बारे में बताएं", Emoji: "🥗"},
	{Text: "Breathing exercises", Hindi: "सांस की कसरत", Emoji: "🫁"},
	{Text: "Baby's movement", Hindi: "बच्चे की हलचल", Emoji: "👶"},
	{Text: "I need encouragement", Hindi: "मुझे प्रोत्साहन चाहिए", Emoji: "💪"},
}

// Tip is a daily wellness tip.
type Tip struct {
	Text  string
	Hindi string
}

// Tips rotate by day of year.
var Tips = []Tip{
	{
		Text:  "Take 5 deep breaths whenever you feel overwhelmed. Remember: You and your baby are both precious.",
		Hindi: "जब भी आप परेशान महसूस करें तो 5 गहरी सांसें लें।",
	},
	{
		Text:  "Drink a glass of water every time you feed or rest. Staying hydrated keeps tiredness away.",
		Hindi: "हर बार आराम करते समय एक गिलास पानी पिएं।",
	},
	{
		Text:  "A short walk after meals helps digestion and lifts your mood.",
		Hindi: "खाने के बाद थोड़ी देर टहलें।",
	},
	{
		Text:  "Share one worry with someone you trust today. You do not have to carry it alone.",
		Hindi: "आज अपनी एक चिंता किसी भरोसेमंद व्यक्ति से साझा करें।",
	},
}

// DailyTip picks the tip for the day of t.
func DailyTip(t time.Time) Tip {
	return Tips[t.YearDay()%len(Tips)]
}

// Greeting returns the time-of-day greeting for t.
func Greeting(t time.Time) string {
	switch h := t.Hour(); {
	case h < 12:
		return "Good morning"
	case h < 17:
		return "Good afternoon"
	default:
		return "Good evening"
	}
}
