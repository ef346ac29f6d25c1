package engine

import (
	"context"
	"fmt"

	"github.com/shaiso/botflow/internal/domain"
)

// sendMessageExecutor — узел send_message: отправка сообщения контакту
// через Messenger.
//
// Конфигурация:
//
//	{
//	    "message_type": "text",
//	    "content": {"text": "Hi {{contact.first_name}}!"},
//	    "next": 1
//	}
//
// message_type: text, template, media, interactive.
type sendMessageExecutor struct {
	messenger Messenger
}

func (x *sendMessageExecutor) execute(ctx context.Context, ec *execContext, node domain.Node) *Result {
	msgType, _ := node.ConfigString("message_type")
	content := node.ConfigMap("content")
	if content == nil {
		content = map[string]any{}
	}

	var err error
	switch msgType {
	case "text", "":
		text, _ := content["text"].(string)
		err = x.messenger.SendText(ctx, ec.contact, ec.interpolate(ctx, text))

	case "template":
		name, _ := content["name"].(string)
		params := templateParams(ctx, ec, content["params"])
		err = x.messenger.SendTemplate(ctx, ec.contact, name, params)

	case "media":
		mediaType, _ := content["media_type"].(string)
		url, _ := content["url"].(string)
		caption, _ := content["caption"].(string)
		err = x.messenger.SendMedia(ctx, ec.contact, mediaType,
			ec.interpolate(ctx, url), ec.interpolate(ctx, caption))

	case "interactive":
		err = x.messenger.SendInteractive(ctx, ec.contact, content)

	default:
		return &Result{
			Success: false,
			Error:   fmt.Sprintf("unsupported message type %q", msgType),
		}
	}

	if err != nil {
		return &Result{
			Success: false,
			Error:   fmt.Sprintf("send message: %v", err),
			Data:    map[string]any{"message_type": msgType},
		}
	}

	return &Result{
		Success:       true,
		NextNodeIndex: node.ConfigIndex("next"),
		Data:          map[string]any{"message_type": msgType, "sent": true},
	}
}

// templateParams интерполирует параметры шаблонного сообщения.
func templateParams(ctx context.Context, ec *execContext, raw any) []string {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	params := make([]string, 0, len(items))
	for _, item := range items {
		s, _ := item.(string)
		params = append(params, ec.interpolate(ctx, s))
	}
	return params
}
