package llm

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"video-sentinel/internal/config"
)

type stubModel struct{ name string }

func (stubModel) Generate(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
	return schema.AssistantMessage("ok", nil), nil
}

func (stubModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, nil
}

func newTestRegistry() *Registry {
	return NewRegistry(&config.Config{LLM: config.LLMConfig{
		DefaultProvider: "describe",
		Providers: map[string]config.ProviderConfig{
			"describe": {Model: "qwen-vl-max"},
			"analyze":  {Model: "qwen-vl-flash"},
		},
	}})
}

func TestRegistryGet(t *testing.T) {
	r := newTestRegistry()
	r.Register("describe", stubModel{name: "describe"})

	m, err := r.Default(context.Background())
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if got, ok := m.(stubModel); !ok || got.name != "describe" {
		t.Errorf("Default() = %#v, want registered model", m)
	}

	if _, err := r.Get(context.Background(), "missing"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestRegistryNames(t *testing.T) {
	if got := newTestRegistry().Names(); !reflect.DeepEqual(got, []string{"analyze", "describe"}) {
		t.Errorf("Names() = %v", got)
	}
}

func TestChatModelConfig(t *testing.T) {
	c := chatModelConfig(config.ProviderConfig{Model: "m", Timeout: time.Second})
	if c.Temperature != nil || c.MaxTokens != nil {
		t.Errorf("zero values should be omitted: %+v", c)
	}

	c = chatModelConfig(config.ProviderConfig{Model: "m", Temperature: 0.2, MaxTokens: 512})
	if c.Temperature == nil || *c.Temperature != float32(0.2) || c.MaxTokens == nil || *c.MaxTokens != 512 {
		t.Errorf("chatModelConfig() = %+v", c)
	}
}
