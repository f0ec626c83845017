package relay

import (
	"html/template"
	"io"
	"strconv"
)

var messagesPage = template.Must(template.New("messages").Parse(`{{if .}}<table>
	<thead>
		<tr>
			<th>ID</th>
			<th>Receiver</th>
			<th>Msg</th>
			<th>Text Msg</th>
			<th>Timestamp</th>
		</tr>
	</thead>
	<tbody>
{{- range .}}
		<tr>
			<td>{{.ID}}</td>
			<td>{{.Receiver}}</td>
			<td>{{.Msg}}</td>
			<td>{{.TextMsg}}</td>
			<td>{{.Timestamp}}</td>
		</tr>
{{- end}}
	</tbody>
</table>
{{else}}<p>No messages found</p>
{{end}}`))

type messageRow struct {
	ID        int64
	Receiver  string
	Msg       string
	TextMsg   string
	Timestamp string
}

// renderMessages writes the HTML table of all messages. NULL columns render
// empty.
func renderMessages(w io.Writer, messages []Message) error {
	rows := make([]messageRow, 0, len(messages))
	for _, m := range messages {
		row := messageRow{
			ID:       m.ID,
			Receiver: optInt(m.Receiver),
			Msg:      optInt(m.Msg),
		}
		if m.TextMsg != nil {
			row.TextMsg = *m.TextMsg
		}
		if !m.CreatedAt.IsZero() {
			row.Timestamp = m.CreatedAt.Format("2006-01-02 15:04:05")
		}
		rows = append(rows, row)
	}
	return messagesPage.Execute(w, rows)
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
