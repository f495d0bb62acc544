package slackbot

import (
	"github.com/slack-go/slack"

	"github.com/valentinpelus/alertdesk/pkg/types"
)

// Callback and button identifiers shared between the posted alert and the interaction router
const (
	CallbackID   = "alertResponse"
	ActionReset  = "reset"
	ActionTicket = "ticket"
)

// Where the alert text is placed on the posted message
const (
	PlacementBody  = "body"
	PlacementTitle = "title"
)

// How the reset annotation is combined with existing attachment fields
const (
	FieldsAppend  = "append"
	FieldsReplace = "replace"
)

// Style holds the fixed presentation of alert messages
type Style struct {
	Username      string
	IconEmoji     string
	TextPlacement string
}

// AlertMessage is a fully built alert post
type AlertMessage struct {
	Username   string
	IconEmoji  string
	Text       string
	Attachment slack.Attachment
}

// BuildAlertMessage creates the message posted for a new alert, with Reset and Create ticket buttons
func BuildAlertMessage(alert types.Alert, style Style) AlertMessage {
	msg := AlertMessage{
		Username:  style.Username,
		IconEmoji: style.IconEmoji,
		Attachment: slack.Attachment{
			Fallback:   "New Datto Alert!",
			CallbackID: CallbackID,
			Color:      "danger",
			Actions: []slack.AttachmentAction{
				{
					Name:  ActionReset,
					Text:  "Reset Alert",
					Value: ActionReset,
					Type:  "button",
				},
				{
					Name:  ActionTicket,
					Text:  "Create ticket",
					Value: ActionTicket,
					Type:  "button",
				},
			},
		},
	}

	if style.TextPlacement == PlacementTitle {
		msg.Attachment.Title = alert.Text
	} else {
		msg.Text = alert.Text
	}

	return msg
}

// Options converts the message into chat.postMessage options
func (m AlertMessage) Options() []slack.MsgOption {
	options := []slack.MsgOption{
		slack.MsgOptionAttachments(m.Attachment),
	}
	if m.Text != "" {
		options = append(options, slack.MsgOptionText(m.Text, false))
	}
	if m.Username != "" {
		options = append(options, slack.MsgOptionUsername(m.Username))
	}
	if m.IconEmoji != "" {
		options = append(options, slack.MsgOptionIconEmoji(m.IconEmoji))
	}
	return options
}

// ResetAttachment rebuilds the original attachment with a reset annotation and no buttons
func ResetAttachment(original slack.Attachment, presser, fieldMode string) slack.Attachment {
	title := "Alert has been reset!"
	if presser != "" {
		title = "Alert has been reset by " + presser
	}
	return annotated(original, "Alert reset", fieldMode, slack.AttachmentField{Title: title})
}

// TicketAttachment rebuilds the original attachment with a link to the created ticket
func TicketAttachment(original slack.Attachment, presser, ticketURL string) slack.Attachment {
	title := "Alert made into a ticket!"
	if presser != "" {
		title = "Alert made into a ticket by " + presser
	}
	return annotated(original, "Ticket created", FieldsAppend, slack.AttachmentField{Title: title, Value: ticketURL})
}

func annotated(original slack.Attachment, fallback, fieldMode string, field slack.AttachmentField) slack.Attachment {
	var fields []slack.AttachmentField
	if fieldMode != FieldsReplace {
		fields = append(fields, original.Fields...)
	}
	fields = append(fields, field)

	return slack.Attachment{
		Fallback: fallback,
		Title:    original.Title,
		Text:     original.Text,
		Color:    "good",
		Fields:   fields,
	}
}

// FirstAttachment returns the first attachment of a message, or a zero attachment
func FirstAttachment(msg slack.Message) slack.Attachment {
	if len(msg.Attachments) == 0 {
		return slack.Attachment{}
	}
	return msg.Attachments[0]
}
