package content

import "strings"

// Contact is a phone contact shown on the emergency and help screens.
type Contact struct {
	Name        string
	NameHindi   string
	Number      string
	Description string
	Available   string
	Priority    string
}

// TelURI returns the tel: link for the contact. Only digits and a leading plus survive.
func (c Contact) TelURI() string {
	return TelURI(c.Number)
}

// TelURI builds a tel: link from a display number such as "+91 98765 43210".
func TelURI(number string) string {
	var b strings.Builder
	b.WriteString("tel:")
	for i, r := range strings.TrimSpace(number) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// EmergencyContacts are the one-tap numbers of the emergency screen.
var EmergencyContacts = []Contact{
	{Name: "Emergency Services", Number: "108", Description: "Immediate medical help", Available: "24/7"},
	{Name: "ASHA Worker", Number: "+91 98765 43210", Description: "Your local health worker", Available: "24/7"},
	{Name: "District Hospital", Number: "+91 98765 43212", Description: "Emergency department", Available: "24/7"},
}

// CrisisLine is shown for thoughts of self-harm.
var CrisisLine = Contact{Name: "Women Helpline", NameHindi: "महिला हेल्पलाइन", Number: "181", Available: "24/7"}

// HelpContacts are listed on the help screen.
var HelpContacts = []Contact{
	{
		Name: "ASHA Worker", NameHindi: "आशा कार्यकर्ता", Number: "+91 98765 43210",
		Description: "Your local health worker", Available: "24/7", Priority: "high",
	},
	{
		Name: "ANM (Nurse)", NameHindi: "ए.एन.एम. (नर्स)", Number: "+91 98765 43211",
		Description: "Auxiliary Nurse Midwife", Available: "8 AM - 8 PM", Priority: "high",
	},
	{
		Name: "District Hospital", NameHindi: "जिला अस्पताल", Number: "108",
		Description: "Emergency medical services", Available: "24/7", Priority: "emergency",
	},
	{
		Name: "Women Helpline", NameHindi: "महिला हेल्पलाइन", Number: "181",
		Description: "Support for women in distress", Available: "24/7", Priority: "medium",
	},
}

// WarningSigns lists symptoms that need immediate care.
var WarningSigns = struct {
	General   []string
	Pregnancy []string
}{
	General: []string{
		"Severe abdominal pain",
		"Heavy bleeding",
		"Severe headache with vision changes",
		"Difficulty breathing",
		"Chest pain",
		"Severe vomiting",
		"High fever (over 101°F)",
		"Severe dizziness or fainting",
	},
	Pregnancy: []string{
		"Decreased baby movement",
		"Leaking fluid from vagina",
		"Severe back pain",
		"Regular contractions before 37 weeks",
		"Swelling in face or hands",
		"Severe mood changes",
		"Thoughts of self-harm",
		"Unable to keep food/water down",
	},
}

// HelpCategory is a group of help topics.
type HelpCategory struct {
	Title       string
	TitleHindi  string
	Description string
	Topics      []string
}

// HelpCategories are shown on the help screen.
var HelpCategories = []HelpCategory{
	{
		Title: "Health Concerns", TitleHindi: "स्वास्थ्य संबंधी चिंताएं", Description: "Medical questions and symptoms",
		Topics: []string{"Pregnancy symptoms", "Pain management", "Nutrition concerns", "Exercise safety"},
	},
	{
		Title: "Mental Wellness", TitleHindi: "मानसिक स्वास्थ्य", Description: "Emotional support and mental health",
		Topics: []string{"Anxiety management", "Depression support", "Stress relief", "Sleep issues"},
	},
	{
		Title: "App Support", TitleHindi: "ऐप सहायता", Description: "How to use Sakhi",
		Topics: []string{"Voice features", "Reminders setup", "Language settings"},
	},
	{
		Title: "Community", TitleHindi: "समुदाय", Description: "Connect with other mothers",
		Topics: []string{"Support groups", "Local meetups", "Share experiences", "Ask questions"},
	},
}

// FAQ is a quick help entry.
type FAQ struct {
	Question      string
	QuestionHindi string
	Answer        string
	Category      string
}

// FAQs are the quick answers of the help screen.
var FAQs = []FAQ{
	{
		Question: "How do I track my mood?", QuestionHindi: "मैं अपना मूड कैसे ट्रैक करूं?",
		Answer:   "Go to Home screen and tap on the emoji that matches your current feeling.",
		Category: "app",
	},
	{
		Question: "What if I miss taking my medicine?", QuestionHindi: "अगर मैं दवा लेना भूल जाऊं तो क्या करूं?",
		Answer:   "Take it as soon as you remember, unless it's almost time for the next dose.",
		Category: "health",
	},
	{
		Question: "When should I call for emergency help?", QuestionHindi: "मुझे आपातकालीन सहायता कब बुलानी चाहिए?",
		Answer:   "Severe pain, heavy bleeding, difficulty breathing, or severe headaches.",
		Category: "emergency",
	},
}
