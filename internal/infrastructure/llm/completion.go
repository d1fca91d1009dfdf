package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/schema"

	apperrors "smartcheck-api/pkg/errors"
)

// Caller 一次性文本补全端口，供上层流水线依赖（测试中可替换）
type Caller interface {
	Complete(ctx context.Context, cred *Credential, system, prompt string) (string, error)
}

// Ensure Factory implements Caller
var _ Caller = (*Factory)(nil)

// Complete 执行一次补全调用并返回文本内容。
// 上游非成功响应映射为 LLM 提供商错误；context 超时原样透出，
// 由调用方区分超时语义。
func (f *Factory) Complete(ctx context.Context, cred *Credential, system, prompt string) (string, error) {
	m, err := f.GetWithCredential(ctx, cred)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeLLMProviderError, "llm client init failed")
	}

	msgs := make([]*schema.Message, 0, 2)
	if system != "" {
		msgs = append(msgs, schema.SystemMessage(system))
	}
	msgs = append(msgs, schema.UserMessage(prompt))

	out, err := m.Generate(ctx, msgs)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return "", err
		}
		return "", apperrors.Wrap(err, apperrors.CodeLLMProviderError, "llm call failed")
	}
	if out == nil || out.Content == "" {
		return "", apperrors.Wrap(fmt.Errorf("empty llm response"), apperrors.CodeLLMProviderError, "llm call failed")
	}
	return out.Content, nil
}
