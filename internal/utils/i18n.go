package utils

// Server-side messages for the fixed keys the API returns. Rule failure
// messages come from the validation engine and are not translated here.

var translations = map[string]map[string]string{
	"en": {
		"health.ok":                  "ok",
		"error.invalid":              "invalid request",
		"error.unauthorized":         "authentication required",
		"error.forbidden":            "forbidden",
		"error.not_found":            "not found",
		"error.conflict":             "conflict",
		"error.internal":             "internal error",
		"error.not_owner":            "only the owner can do this",
		"error.has_answers":          "the questionnaire already has answers and can no longer change",
		"error.answers_not_accepted": "the questionnaire is not accepting answers",
		"error.concurrent_update":    "the questionnaire changed meanwhile, please retry",
		"error.definition":           "invalid questionnaire definition",
		"error.unknown_rule":         "unknown validation rule",
		"error.answer_count":         "the number of answers does not match the number of questions",
		"error.answer_not_found":     "an answer is missing for a question",
		"error.question_mismatch":    "an answer addresses the wrong question",
		"error.validation":           "some answers are not valid",
	},
	"es": {
		"health.ok":                  "ok",
		"error.invalid":              "solicitud inválida",
		"error.unauthorized":         "se requiere autenticación",
		"error.forbidden":            "prohibido",
		"error.not_found":            "no encontrado",
		"error.conflict":             "conflicto",
		"error.internal":             "error interno",
		"error.not_owner":            "solo el propietario puede hacer esto",
		"error.has_answers":          "la encuesta ya tiene respuestas y no puede cambiar",
		"error.answers_not_accepted": "la encuesta no acepta respuestas",
		"error.concurrent_update":    "la encuesta cambió mientras tanto, intente de nuevo",
		"error.definition":           "definición de encuesta inválida",
		"error.unknown_rule":         "regla de validación desconocida",
		"error.answer_count":         "el número de respuestas no coincide con el número de preguntas",
		"error.answer_not_found":     "falta la respuesta de una pregunta",
		"error.question_mismatch":    "una respuesta corresponde a otra pregunta",
		"error.validation":           "algunas respuestas no son válidas",
	},
}

// T returns the translated string for key in locale; falls back to English.
func T(locale, key string) string {
	if m, ok := translations[locale]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	if m, ok := translations["en"]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	return key
}
