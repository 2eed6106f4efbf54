// Package content holds the static catalogs shown by the app: learning material, contacts, prompts
// and tips.
package content

// MediaType is the presentation of a learning item.
type MediaType string

const (
	MediaAudio   MediaType = "audio"
	MediaVideo   MediaType = "video"
	MediaArticle MediaType = "article"
)

// Category groups learning items.
type Category struct {
	ID    string
	Name  string
	Hindi string
	Icon  string
	Items []Item
}

// Item is one piece of learning material.
type Item struct {
	Slug        string
	Title       string
	TitleHindi  string
	Duration    string
	Description string
	Type        MediaType
	Offline     bool
	Steps       []string
}

// StepsHeading is the heading above an item's steps.
func (i Item) StepsHeading() string {
	if i.Type == MediaArticle {
		return "Key Points"
	}
	return "What You'll Learn"
}

// Categories is the learning catalog in display order.
var Categories = []Category{
	{
		ID: "wellness", Name: "Wellness", Hindi: "कल्याण", Icon: "🧘",
		Items: []Item{
			{
				Slug: "morning-meditation", Title: "Morning Meditation", TitleHindi: "सुबह की ध्यान साधना",
				Duration: "5 min", Description: "Start your day with peace and positivity",
				Type: MediaAudio, Offline: true,
				Steps: []string{
					"Sit comfortably with your back straight",
					"Close your eyes and take three deep breaths",
					"Focus on your natural breathing rhythm",
					"If thoughts arise, gently return to your breath",
					"Feel gratitude for your body and baby",
					"End with positive affirmations",
				},
			},
			{
				Slug: "pregnancy-yoga", Title: "Gentle Pregnancy Yoga", TitleHindi: "सौम्य गर्भावस्था योग",
				Duration: "15 min", Description: "Safe yoga poses for expecting mothers",
				Type: MediaVideo, Offline: true,
				Steps: []string{
					"Find a comfortable, quiet space with a yoga mat",
					"Start with deep breathing exercises (2 minutes)",
					"Gentle neck and shoulder rolls",
					"Cat-cow stretches for back relief",
					"Modified child's pose",
					"Gentle hip circles while seated",
					"Final relaxation in side-lying position",
				},
			},
			{
				Slug: "stress-relief", Title: "Stress Relief Techniques", TitleHindi: "तनाव मुक्ति तकनीक",
				Duration: "8 min", Description: "Simple ways to manage daily stress",
				Type: MediaArticle,
				Steps: []string{
					"Name what is worrying you, out loud or on paper",
					"Take a short walk in fresh air",
					"Talk to someone you trust every day",
					"Rest when your body asks for it",
					"Keep a small routine for meals and sleep",
				},
			},
		},
	},
	{
		ID: "nutrition", Name: "Nutrition", Hindi: "पोषण", Icon: "🥗",
		Items: []Item{
			{
				Slug: "iron-rich-foods", Title: "Iron-Rich Foods Guide", TitleHindi: "आयरन युक्त खाद्य गाइड",
				Duration: "6 min", Description: "Prevent anemia with the right foods",
				Type: MediaArticle, Offline: true,
				Steps: []string{
					"Green leafy vegetables: Spinach, fenugreek leaves",
					"Lentils and beans: Masoor dal, rajma, chana",
					"Dry fruits: Dates, raisins, dried apricots",
					"Seeds and nuts: Pumpkin seeds, sesame seeds",
					"Jaggery and fortified cereals",
					"Combine with Vitamin C foods for better absorption",
				},
			},
			{
				Slug: "meal-planning", Title: "Healthy Meal Planning", TitleHindi: "स्वस्थ भोजन नियोजन",
				Duration: "12 min", Description: "Weekly meal prep for busy mothers",
				Type: MediaVideo, Offline: true,
				Steps: []string{
					"Plan three meals and two snacks a day",
					"Add one protein to every meal: dal, eggs, paneer or curd",
					"Fill half the plate with vegetables",
					"Soak and sprout pulses at the start of the week",
					"Drink 8 to 10 glasses of clean water daily",
				},
			},
		},
	},
	{
		ID: "hygiene", Name: "Hygiene", Hindi: "स्वच्छता", Icon: "🧼",
		Items: []Item{
			{
				Slug: "hand-washing", Title: "Hand Washing Demonstration", TitleHindi: "हाथ धोने का प्रदर्शन",
				Duration: "3 min", Description: "Proper handwashing to prevent infections",
				Type: MediaVideo, Offline: true,
				Steps: []string{
					"Wet your hands with clean running water",
					"Apply soap and rub palms together",
					"Scrub the backs of hands, between fingers and under nails",
					"Keep scrubbing for at least 20 seconds",
					"Rinse well and dry with a clean cloth",
				},
			},
			{
				Slug: "water-storage", Title: "Clean Water Storage", TitleHindi: "स्वच्छ पानी का भंडारण",
				Duration: "5 min", Description: "Safe water storage practices",
				Type: MediaArticle, Offline: true,
				Steps: []string{
					"Boil or filter drinking water",
					"Store it in a clean container with a lid",
					"Use a ladle instead of dipping a glass",
					"Clean the container every two days",
				},
			},
		},
	},
	{
		ID: "breathing", Name: "Breathing", Hindi: "सांस लेना", Icon: "🫁",
		Items: []Item{
			{
				Slug: "deep-breathing", Title: "Deep Breathing Exercise", TitleHindi: "गहरी सांस की कसरत",
				Duration: "4 min", Description: "Calm your mind and body",
				Type: MediaAudio, Offline: true,
				Steps: []string{
					"Sit or lie on your side comfortably",
					"Breathe in slowly through your nose for 4 counts",
					"Hold gently for 2 counts",
					"Breathe out through your mouth for 6 counts",
					"Repeat five times",
				},
			},
			{
				Slug: "breathing-for-labor", Title: "Breathing for Labor", TitleHindi: "प्रसव के लिए सांस",
				Duration: "10 min", Description: "Breathing techniques for childbirth",
				Type: MediaVideo, Offline: true,
				Steps: []string{
					"Slow breathing between contractions",
					"Light, quick breaths at the peak of a contraction",
					"Relax your jaw and shoulders as you breathe out",
					"Practice daily with your birth partner",
				},
			},
		},
	},
}

// CategoryByID finds a category.
func CategoryByID(id string) (Category, bool) {
	for _, c := range Categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// Lookup finds an item by category and slug.
func Lookup(categoryID, slug string) (Category, Item, bool) {
	c, ok := CategoryByID(categoryID)
	if !ok {
		return Category{}, Item{}, false
	}
	for _, it := range c.Items {
		if it.Slug == slug {
			return c, it, true
		}
	}
	return Category{}, Item{}, false
}
