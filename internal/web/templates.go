package web

import (
	"bytes"
	"html/template"

	"github.com/jaminalder/codex-reversi/internal/domain"
)

type templates struct {
	page  *template.Template
	board *template.Template
	index *template.Template
}

func funcs() template.FuncMap {
	return template.FuncMap{
		"cellSymbol": func(c domain.Cell) string {
			switch c {
			case domain.PlayerOne:
				return "X"
			case domain.PlayerTwo:
				return "O"
			default:
				return ""
			}
		},
	}
}

func loadTemplates() *templates {
	base := template.Must(template.New("base").Funcs(funcs()).Parse(`<!doctype html><html><head>
<meta charset="utf-8"/>
<script src="https://unpkg.com/htmx.org@1.9.12"></script>
<script src="https://unpkg.com/htmx.org/dist/ext/sse.js"></script>
</head><body>{{template "content" .}}</body></html>`))
	index := template.Must(template.Must(base.Clone()).New("content").Parse(`<h1>Reversi</h1><form action="/board" method="post"><button>New board</button></form>`))
	page := template.Must(template.Must(base.Clone()).New("content").Parse(`
<div hx-ext="sse" hx-sse="connect:/board/{{.ID}}/events">
  <div id="board-container" hx-sse="swap:board">{{.BoardHTML}}</div>
</div>`))
	// Standalone board template used for fragment rendering
	board := template.Must(template.New("board_only").Funcs(funcs()).Parse(boardTemplate))
	return &templates{page: page, board: board, index: index}
}

func renderTemplate(t *template.Template, name string, data any) []byte {
	var buf bytes.Buffer
	if name == "" {
		_ = t.Execute(&buf, data)
	} else {
		_ = t.ExecuteTemplate(&buf, name, data)
	}
	return buf.Bytes()
}

// boardView is the data handed to boardTemplate.
type boardView struct {
	ID      string
	Rows    [][]domain.Cell
	Result  domain.Result
	Player  domain.Player
	Verdict string
	Error   string
}

const boardTemplate = `
<div id="board">
  {{if .Error}}
  <div class="alert">{{.Error}}</div>
  {{end}}
  {{if .Verdict}}
  <div class="verdict">{{.Verdict}}</div>
  {{end}}
  <div class="score">X {{.Result.PlayerOne}} : {{.Result.PlayerTwo}} O{{if .Result.Finished}}{{if .Result.Tied}} (tie){{else}} (winner: {{.Result.Winner}}){{end}}{{end}}</div>
  {{$id := .ID}}{{$player := .Player}}
  {{range $r, $row := .Rows}}
  <div class="row">
    {{range $c, $cell := $row}}
      <form hx-post="/board/{{$id}}/check" hx-target="#board" hx-swap="outerHTML" method="post">
        <input type="hidden" name="player" value="{{$player}}">
        <input type="hidden" name="r" value="{{$r}}">
        <input type="hidden" name="c" value="{{$c}}">
        <button type="submit">{{cellSymbol $cell}}</button>
      </form>
    {{end}}
  </div>
  {{end}}
</div>
`
