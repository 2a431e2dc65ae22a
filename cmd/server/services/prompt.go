package services

import "fmt"

const systemPromptTemplate = `You are an AI assistant helping users understand documents. The user has uploaded a document with the following content:

---
%s
---

Your role is to:
- Answer questions about this document
- Explain complex concepts in simple terms
- Provide summaries when asked
- Help users understand legal, technical, or academic content

Please be helpful, accurate, and concise.`

// BuildSystemPrompt 는 추출된 문서 본문을 담은 시스템 프롬프트를 만든다.
// 세션 생성 시 한 번 만들어 저장하고 매 턴 그대로 사용한다.
func BuildSystemPrompt(documentText string) string {
	return fmt.Sprintf(systemPromptTemplate, documentText)
}
