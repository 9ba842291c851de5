package navigation

// PageMeta is cosmetic information about a page. It plays no part in access decisions.
type PageMeta struct {
	Title     string
	Landing   bool
	BodyClass string
	Found     bool
}

const loginBodyClass = "login-page"

// Presentation returns the layout hints for the page at to.Path
func (g *Guard) Presentation(to Target) PageMeta {
	match, ok := to.resolve(g.routes)
	if !ok {
		return PageMeta{Title: "Page introuvable"}
	}
	meta := PageMeta{
		Title:   match.Route.Title,
		Landing: match.Route.Landing,
		Found:   true,
	}
	if match.Route.Name == "login" {
		meta.BodyClass = loginBodyClass
	}
	return meta
}
