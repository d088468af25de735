package prompt

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"webforge-ai-api/internal/domain/entity"
)

//go:embed templates/*.txt
var templatesFS embed.FS

type PromptID string

const (
	PromptEnrichWrapperV1 PromptID = "enrich_wrapper_v1"
	PromptCritiqueV1      PromptID = "critique_v1"
	PromptCorrectionV1    PromptID = "correction_v1"
)

type Registry struct {
	mu     sync.RWMutex
	cache  map[PromptID]einoprompt.ChatTemplate
	blocks map[entity.ProtocolID]string
}

func NewRegistry() *Registry {
	return &Registry{
		cache:  make(map[PromptID]einoprompt.ChatTemplate),
		blocks: make(map[entity.ProtocolID]string),
	}
}

// Block 返回指令块原文
func (r *Registry) Block(id entity.ProtocolID) (string, error) {
	if r == nil {
		return "", fmt.Errorf("prompt registry is nil")
	}

	r.mu.RLock()
	if b, ok := r.blocks[id]; ok {
		r.mu.RUnlock()
		return b, nil
	}
	r.mu.RUnlock()

	b, err := readEmbeddedText(fmt.Sprintf("templates/block_%s.txt", id))
	if err != nil {
		return "", fmt.Errorf("unknown protocol block %s: %w", id, err)
	}

	r.mu.Lock()
	r.blocks[id] = b
	r.mu.Unlock()
	return b, nil
}

// ChatTemplate 返回 Go template 语法的消息模板，system 部分可选
func (r *Registry) ChatTemplate(id PromptID) (einoprompt.ChatTemplate, error) {
	if r == nil {
		return nil, fmt.Errorf("prompt registry is nil")
	}

	r.mu.RLock()
	if tpl, ok := r.cache[id]; ok {
		r.mu.RUnlock()
		return tpl, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if tpl, ok := r.cache[id]; ok {
		return tpl, nil
	}

	systemPath, userPath, err := resolvePromptFiles(id)
	if err != nil {
		return nil, err
	}
	var msgs []schema.MessagesTemplate
	if systemPath != "" {
		system, err := readEmbeddedText(systemPath)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, schema.SystemMessage(system))
	}
	user, err := readEmbeddedText(userPath)
	if err != nil {
		return nil, err
	}
	msgs = append(msgs, schema.UserMessage(user))

	tpl := einoprompt.FromMessages(schema.GoTemplate, msgs...)
	r.cache[id] = tpl
	return tpl, nil
}

func resolvePromptFiles(id PromptID) (systemFile string, userFile string, err error) {
	switch id {
	case PromptEnrichWrapperV1:
		return "", "templates/enrich_wrapper_v1.user.txt", nil
	case PromptCritiqueV1:
		return "templates/critique_v1.system.txt", "templates/critique_v1.user.txt", nil
	case PromptCorrectionV1:
		return "", "templates/correction_v1.user.txt", nil
	default:
		return "", "", fmt.Errorf("unknown prompt id: %s", id)
	}
}

func readEmbeddedText(path string) (string, error) {
	b, err := templatesFS.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// Split 把渲染后的消息拆成 system 与 user 文本
func Split(msgs []*schema.Message) (system string, user string) {
	var sys, usr []string
	for _, m := range msgs {
		if m == nil {
			continue
		}
		switch m.Role {
		case schema.System:
			sys = append(sys, m.Content)
		default:
			usr = append(usr, m.Content)
		}
	}
	return strings.Join(sys, "\n\n"), strings.Join(usr, "\n\n")
}
