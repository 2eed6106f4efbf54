package handlers

import (
	"net/http"

	"github.com/MegaGrindStone/sakhi/internal/content"
	"github.com/gorilla/mux"
)

type learnPageData struct {
	page
	Categories []content.Category
	Active     content.Category
}

type learnItemPageData struct {
	page
	Category content.Category
	Item     content.Item
}

type contactsPageData struct {
	page
	Emergency  []content.Contact
	Crisis     content.Contact
	Contacts   []content.Contact
	General    []string
	Pregnancy  []string
	Categories []content.HelpCategory
	FAQs       []content.FAQ
}

// HandleLearn renders the learning browser with the category from the "category" query parameter,
// the first category when it is absent or unknown.
func (m Main) HandleLearn(w http.ResponseWriter, r *http.Request) {
	sess := m.session(w, r)
	active, ok := content.CategoryByID(r.URL.Query().Get("category"))
	if !ok {
		active = content.Categories[0]
	}
	m.execute(w, "learn.html", http.StatusOK, learnPageData{
		page:       m.page(sess, "Learn", "learn"),
		Categories: content.Categories,
		Active:     active,
	})
}

// HandleLearnItem renders one learning item.
func (m Main) HandleLearnItem(w http.ResponseWriter, r *http.Request) {
	sess := m.session(w, r)
	vars := mux.Vars(r)
	cat, item, ok := content.Lookup(vars["category"], vars["slug"])
	if !ok {
		http.NotFound(w, r)
		return
	}
	m.execute(w, "learn_item.html", http.StatusOK, learnItemPageData{
		page:     m.page(sess, item.Title, "learn"),
		Category: cat,
		Item:     item,
	})
}

// HandleEmergency renders the emergency contacts and warning signs.
func (m Main) HandleEmergency(w http.ResponseWriter, r *http.Request) {
	sess := m.session(w, r)
	m.execute(w, "emergency.html", http.StatusOK, contactsPageData{
		page:      m.page(sess, "Emergency", "emergency"),
		Emergency: content.EmergencyContacts,
		Crisis:    content.CrisisLine,
		General:   content.WarningSigns.General,
		Pregnancy: content.WarningSigns.Pregnancy,
	})
}

// HandleHelp renders the help contacts, categories and FAQs.
func (m Main) HandleHelp(w http.ResponseWriter, r *http.Request) {
	sess := m.session(w, r)
	m.execute(w, "help.html", http.StatusOK, contactsPageData{
		page:       m.page(sess, "Help & Support", "help"),
		Crisis:     content.CrisisLine,
		Contacts:   content.HelpContacts,
		Categories: content.HelpCategories,
		FAQs:       content.FAQs,
	})
}
