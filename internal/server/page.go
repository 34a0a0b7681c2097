package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/briefdesk/briefedit/pkg/render"
	"github.com/briefdesk/briefedit/pkg/session"
	g "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"
)

// PageLayout wraps content in the common document shell.
func PageLayout(title string, content ...g.Node) g.Node {
	return g.Group([]g.Node{
		g.Raw("<!DOCTYPE html>"),
		HTML(Lang("en"),
			Head(
				Meta(Charset("UTF-8")),
				Meta(Name("viewport"), Content("width=device-width, initial-scale=1.0")),
				TitleEl(g.Text(title)),
				Script(Src("https://cdn.tailwindcss.com")),
			),
			Body(Class("bg-slate-50 text-slate-900"),
				Main(Class("container mx-auto max-w-6xl p-4"), g.Group(content)),
			),
		),
	})
}

// EmailForm is the entry page: subject, body and attachments.
func EmailForm(errMsg string) g.Node {
	return Section(Class("bg-white rounded-lg shadow p-6"),
		H1(Class("text-2xl font-bold mb-4"), g.Text("New media plan brief")),
		g.If(errMsg != "", P(Class("mb-4 text-red-600"), g.Text(errMsg))),
		Form(Method("post"), Action("/sessions"), EncType("multipart/form-data"), Class("space-y-4"),
			Input(Type("text"), Name("subject"), Placeholder("Email subject"), Class("w-full border rounded p-2")),
			Textarea(Name("body"), Rows("12"), Placeholder("Email body"), Class("w-full border rounded p-2")),
			Input(Type("file"), Name("files"), Multiple()),
			Button(Type("submit"), Class("bg-blue-600 text-white rounded px-4 py-2"), g.Text("Process Email")),
		),
	)
}

func panel(p render.Panel) g.Node {
	return Section(Class("bg-white rounded-lg shadow p-4"), ID("panel-"+string(p.Collection)),
		Div(Class("flex items-center justify-between mb-2"),
			H2(Class("font-semibold"), g.Text(p.Title)),
			Label(Class("text-sm"),
				Input(Type("checkbox"), Name("select-all-"+string(p.Collection)), g.If(p.AllChecked, Checked())),
				g.Text(" Select all"),
			),
		),
		g.If(len(p.Items) == 0, P(Class("text-sm text-slate-500"), g.Text("Nothing selected."))),
		Ul(Class("space-y-1"),
			g.Map(p.Items, func(it render.Item) g.Node {
				if p.Chips {
					cls := "inline-block rounded-full px-3 py-1 text-sm mr-1 "
					if it.Checked {
						cls += "bg-blue-600 text-white"
					} else {
						cls += "bg-slate-200"
					}
					return Li(Class("inline"), Span(Class(cls), Data("key", it.Key), g.Text(it.Label)))
				}
				return Li(
					Label(
						Input(Type("checkbox"), Value(it.Key), g.If(it.Checked, Checked())),
						g.Text(" "+it.Label),
						g.If(it.Detail != "", Span(Class("text-slate-500"), g.Textf(" (%s)", it.Detail))),
						g.If(it.Group, Span(Class("ml-2 text-xs rounded bg-amber-100 px-1"), g.Text("group"))),
					),
				)
			}),
		),
	)
}

func abvrSections(sections []render.ABVRSection) g.Node {
	return Section(Class("bg-white rounded-lg shadow p-4"), ID("panel-abvrs"),
		H2(Class("font-semibold mb-2"), g.Text("ABVRs")),
		g.Map(sections, func(sec render.ABVRSection) g.Node {
			return Div(Class("mb-4"),
				H3(Class("text-sm font-medium text-slate-600"), g.Text(sec.Title)),
				Table(Class("w-full text-sm"),
					TBody(g.Map(sec.Rows, func(row render.AudienceRow) g.Node {
						return Tr(
							Td(Input(Type("checkbox"), Value(row.Code), g.If(row.Checked, Checked()))),
							Td(Class("font-mono"), g.Text(row.Code)),
							Td(g.Text(row.Name)),
							Td(Class("text-slate-500"), g.Text(row.Description)),
							Td(g.Text(row.Similarity)),
						)
					})),
				),
			)
		}),
	)
}

func forecastTables(f *render.ForecastView) g.Node {
	if f == nil {
		return nil
	}
	return Section(Class("bg-white rounded-lg shadow p-4"), ID("forecast"),
		H2(Class("font-semibold mb-2"), g.Text("Forecast")),
		g.Map(f.Tables, func(t render.ForecastTable) g.Node {
			return Div(Class("mb-4"),
				H3(Class("font-medium"), g.Text(t.Title)),
				Table(Class("w-full text-sm border"),
					THead(Tr(g.Map(t.Header, func(h string) g.Node { return Th(Class("text-left p-1"), g.Text(h)) }))),
					TBody(g.Map(t.Rows, func(row []string) g.Node {
						return Tr(g.Map(row, func(c string) g.Node { return Td(Class("p-1"), g.Text(c)) }))
					})),
				),
			)
		}),
		Div(Class("space-x-3 text-sm"),
			A(Href("export/forecast.csv"), g.Text("Download CSV")),
			A(Href("export/audiences.csv"), g.Text("Audiences CSV")),
			A(Href("export/forecast.pdf"), g.Text("Download PDF")),
		),
	)
}

func toasts(ts []session.Toast) g.Node {
	return Div(ID("toasts"), Class("fixed top-4 right-4 space-y-2"),
		g.Map(ts, func(t session.Toast) g.Node {
			cls := "rounded shadow p-3 bg-white border-l-4 "
			switch t.Kind {
			case session.ToastError:
				cls += "border-red-500"
			case session.ToastSuccess:
				cls += "border-green-500"
			default:
				cls += "border-blue-500"
			}
			return Div(Class(cls), Strong(g.Text(t.Title)), P(Class("text-sm"), g.Text(t.Message)))
		}),
	)
}

// SessionPage renders the editor for one session.
func SessionPage(v render.View) g.Node {
	return g.Group([]g.Node{
		H1(Class("text-2xl font-bold mb-4"), g.Text(v.Subject)),
		toasts(v.Toasts),
		Div(Class("grid grid-cols-1 md:grid-cols-2 gap-4"),
			panel(v.Cohorts),
			panel(v.Locations),
			panel(v.Presets),
			panel(v.Keywords),
		),
		g.If(len(v.NotFound) > 0,
			Section(Class("mt-4 bg-amber-50 rounded p-4"),
				H2(Class("font-semibold"), g.Text("Locations not found")),
				Ul(g.Map(v.NotFound, func(n string) g.Node { return Li(g.Text(n)) })),
			),
		),
		Div(Class("mt-4"), abvrSections(v.ABVRSections)),
		Section(Class("mt-4 bg-white rounded-lg shadow p-4"),
			H2(Class("font-semibold mb-2"), g.Text("Settings")),
			Dl(Class("grid grid-cols-2 gap-2 text-sm"),
				g.Map(v.Settings, func(st render.SettingView) g.Node {
					return g.Group([]g.Node{Dt(g.Text(st.Label)), Dd(g.Text(st.Value))})
				}),
				Dt(g.Text("Target Age")),
				Dd(g.Text(v.Age.Text), g.If(v.Age.Error != "", Span(Class("ml-2 text-red-600"), g.Text(v.Age.Error)))),
			),
		),
		Div(Class("mt-4 space-x-2"),
			g.Map(v.Buttons, func(b render.Button) g.Node {
				return Button(Type("button"), Data("action", string(b.Action)), g.If(b.Disabled, Disabled()),
					Class("rounded px-3 py-1 bg-blue-600 text-white disabled:opacity-50"), g.Text(b.Label))
			}),
		),
		Div(Class("mt-4"), forecastTables(v.Forecast)),
		g.If(v.Presentation != nil && v.Presentation.URL != "",
			P(Class("mt-4"), A(Href(presentationURL(v)), Target("_blank"), Rel("noopener"), g.Text("Open Google Slides"))),
		),
	})
}

func presentationURL(v render.View) string {
	if v.Presentation == nil {
		return ""
	}
	return v.Presentation.URL
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	PageLayout("briefedit", EmailForm("")).Render(w)
}

func (s *Server) handleSubmitEmail(w http.ResponseWriter, r *http.Request) {
	email, err := readEmail(r)
	if err == nil {
		var sess *session.Session
		sess, err = s.Manager.Process(r.Context(), email)
		if err == nil {
			http.Redirect(w, r, "/sessions/"+sess.ID, http.StatusSeeOther)
			return
		}
	}
	status, body := statusFor(err)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	PageLayout("briefedit", EmailForm(fmt.Sprintf("%s: %s", body.Error, body.Message))).Render(w)
}

func (s *Server) handleSessionPage(w http.ResponseWriter, r *http.Request) {
	st, err := s.Manager.State(r.PathValue("id"))
	if errors.Is(err, session.ErrNotFound) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	v := render.Render(st)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	PageLayout(v.Subject+" - briefedit", SessionPage(v)).Render(w)
}
