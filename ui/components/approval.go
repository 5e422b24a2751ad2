package components

import (
	"encoding/json"
	"strings"

	"github.com/Rorical/RoriAgent/internal/approval"
	"github.com/Rorical/RoriAgent/ui/styles"
)

const (
	outputLines  = 10
	payloadLines = 8
)

// RenderApproval draws the approval menu, or "" when nothing is asked.
func RenderApproval(snap approval.Snapshot, width int) string {
	if snap.Pending == nil {
		return ""
	}
	req := snap.Pending
	inner := width - 8

	var b strings.Builder
	b.WriteString(styles.BoldStyle().Render(approvalTitle(*req)))
	b.WriteByte('\n')
	if body := approvalBody(*req, inner); body != "" {
		b.WriteString(styles.PayloadStyle().Render(body))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')

	if snap.Phase == approval.Processing {
		b.WriteString(styles.DimStyle().Render("Working..."))
	} else {
		for i, opt := range snap.Options {
			marker := "  "
			if i == snap.Selected {
				marker = "› "
			}
			label := opt.Label
			if opt.Hotkey != "" {
				label = "[" + opt.Hotkey + "] " + label
			}
			b.WriteString(marker + styles.OptionStyle(opt.Color, i == snap.Selected).Render(clip(label, inner-2)))
			if i < len(snap.Options)-1 {
				b.WriteByte('\n')
			}
		}
	}
	return styles.ApprovalStyle(width).Render(b.String())
}

func approvalTitle(req approval.Request) string {
	switch req.Kind {
	case approval.KindCommand:
		return "Run this command?"
	case approval.KindCommandOutput:
		return "Command running"
	case approval.KindTool:
		if p, ok := fileChange(req.Payload); ok {
			if p.Tool == approval.ToolNewFileCreated {
				return "Create " + p.Path + "?"
			}
			return "Overwrite " + p.Path + "?"
		}
		return "Allow this tool?"
	default:
		return "Approve " + string(req.Kind) + "?"
	}
}

func approvalBody(req approval.Request, width int) string {
	switch req.Kind {
	case approval.KindCommandOutput:
		return tail(req.Payload, outputLines, width)
	case approval.KindTool:
		if p, ok := fileChange(req.Payload); ok {
			return head(p.Content, payloadLines, width)
		}
	}
	return head(req.Payload, payloadLines, width)
}

type fileChangePayload struct {
	Tool    string `json:"tool"`
	Path    string `json:"path"`
	Content string `json:"content"`
}

func fileChange(payload string) (fileChangePayload, bool) {
	var p fileChangePayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil || p.Path == "" {
		return p, false
	}
	return p, true
}
