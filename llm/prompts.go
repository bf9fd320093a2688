package llm

import (
	"fmt"
	"strings"

	"lexdraft-backend/models"
)

var suggestionInstructions = map[models.ActionType]string{
	models.ActionRewrite: "Reescreva o texto a seguir mantendo o significado original mas com uma redação diferente, " +
		"mais clara e profissional. Retorne APENAS o texto reescrito, sem explicações ou observações.",
	models.ActionFormalize: "Formalize o texto a seguir, tornando-o mais adequado para um documento jurídico formal. " +
		"Use vocabulário técnico-jurídico quando apropriado. Retorne APENAS o texto formalizado, sem explicações.",
	models.ActionReduce: "Reduza o texto a seguir, mantendo as informações essenciais mas em uma redação mais concisa " +
		"e objetiva. Retorne APENAS o texto reduzido, sem explicações.",
	models.ActionCohesion: "Melhore a coesão e fluidez do texto a seguir, ajustando conectivos e transições entre ideias " +
		"para melhorar a leitura. Retorne APENAS o texto melhorado, sem explicações.",
	models.ActionFundamentation: "Com base no texto a seguir, crie um tópico de fundamentação jurídica bem estruturado. " +
		"Inclua referências a princípios gerais do direito quando aplicável. NÃO invente leis ou artigos específicos. " +
		"Retorne APENAS o texto de fundamentação, sem explicações.",
}

// WizardAction is a free-form transform offered by the wizard
type WizardAction string

const (
	WizardImprove   WizardAction = "improve"
	WizardFix       WizardAction = "fix"
	WizardSummarize WizardAction = "summarize"
	WizardExpand    WizardAction = "expand"
	WizardCustom    WizardAction = "custom"
)

var wizardInstructions = map[WizardAction]string{
	WizardImprove: "Melhore o texto a seguir para usar vocabulário jurídico mais adequado e tom profissional, " +
		"mantendo o significado original. Não inclua observações introdutórias ou conclusivas, apenas o texto melhorado.",
	WizardFix: "Corrija quaisquer erros de gramática, ortografia e pontuação no texto a seguir. " +
		"Mantenha o tom original. Não inclua aspas ou explicações.",
	WizardSummarize: "Forneça um resumo conciso do texto a seguir, focando nos fatos jurídicos principais. " +
		"Não inclua cabeçalho \"Resumo:\".",
	WizardExpand: "Reescreva o texto a seguir de forma expandida, adicionando mais detalhes descritivos e vocabulário " +
		"jurídico formal. NÃO forneça opções ou alternativas. Apenas reescreva o texto original UMA ÚNICA VEZ de forma " +
		"mais completa e detalhada. NÃO invente fatos novos, apenas enriqueça a descrição dos fatos existentes.",
}

const answerInPortuguese = "Responda em português brasileiro."

// Valid reports whether a is a known wizard action
func (a WizardAction) Valid() bool {
	_, ok := wizardInstructions[a]
	return ok || a == WizardCustom
}

// SuggestionPrompt builds the instruction for an inline editor action
func SuggestionPrompt(action models.ActionType, text string) (string, error) {
	instruction, ok := suggestionInstructions[action]
	if !ok {
		return "", fmt.Errorf("%w: unknown action type %q", models.ErrValidation, action)
	}
	return fmt.Sprintf("%s %s\n\n%q", instruction, answerInPortuguese, text), nil
}

// WizardPrompt builds the instruction for a wizard transform
func WizardPrompt(action WizardAction, text, customPrompt string) (string, error) {
	if action == WizardCustom {
		if strings.TrimSpace(customPrompt) == "" {
			return "", fmt.Errorf("%w: customPrompt is required for the custom action", models.ErrValidation)
		}
		return fmt.Sprintf("Aplique a seguinte instrução ao texto: %q\n\nTexto original:\n%q\n\n"+
			"Responda em português brasileiro, retornando apenas o texto modificado, sem explicações.",
			customPrompt, text), nil
	}
	instruction, ok := wizardInstructions[action]
	if !ok {
		return "", fmt.Errorf("%w: unknown wizard action %q", models.ErrValidation, action)
	}
	return fmt.Sprintf("%s %s\n\n%q", instruction, answerInPortuguese, text), nil
}

// DraftInput carries what the wizard collected for a piece
type DraftInput struct {
	TemplateTitle       string
	TemplateCategory    string
	TemplateDescription string
	Title               string
	Inputs              string
	Theses              string
	Jurisprudence       string
}

// DraftPrompt builds the instruction that drafts a complete piece
func DraftPrompt(in DraftInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Você é um advogado brasileiro experiente. Redija a peça jurídica \"%s\" (área: %s).\n",
		in.TemplateTitle, in.TemplateCategory)
	if in.TemplateDescription != "" {
		fmt.Fprintf(&b, "Finalidade da peça: %s\n", in.TemplateDescription)
	}
	if in.Title != "" {
		fmt.Fprintf(&b, "Título do documento: %s\n", in.Title)
	}

	section := func(name, body string) {
		if strings.TrimSpace(body) == "" || body == "null" {
			return
		}
		fmt.Fprintf(&b, "\n%s:\n%s\n", name, body)
	}
	section("FATOS E DADOS INFORMADOS", in.Inputs)
	section("TESES SELECIONADAS", in.Theses)
	section("JURISPRUDÊNCIA SELECIONADA", in.Jurisprudence)

	b.WriteString(`
REQUISITOS DE SAÍDA:
- Estruture a peça com endereçamento, qualificação das partes, fatos, fundamentação jurídica, pedidos e fecho.
- Marque cada título de seção com "# " no início da linha.
- Separe parágrafos com uma linha em branco. Não use outra formatação markdown.
- Use linguagem jurídica formal e objetiva. NÃO invente leis, artigos ou precedentes.
- Use colchetes para dados ausentes, por exemplo [NOME DO RÉU].
`)
	b.WriteString(answerInPortuguese)
	return b.String()
}
