package prompts

import "strings"

const classifySpec = `Respond with a JSON object matching this exact structure:

{
  "title": "<topic>",
  "confidence": 0,
  "text": "<clause text>"
}

Field constraints:
- title: One of the listed topics, spelled exactly as listed. Empty
  string when the passage expresses none of them.
- confidence: Number from 0 to 100 describing how clearly the passage
  expresses the topic.
- text: The sentences of the passage that state the clause, copied
  verbatim. Empty string when title is empty.

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing
- Report at most one topic per passage
- Copy clause text exactly; never paraphrase`

const answerSpec = `Respond with plain prose, no markdown.

Citation constraints:
- Every sentence must end with the bracketed number of the passage that
  supports it, for example [1] or [2][3].
- Cite only passage numbers that appear in the evidence.
- A sentence that no passage supports must be left out.
- Keep the answer to at most four sentences.`

var specs = map[Stage]string{
	StageClassify: classifySpec,
	StageAnswer:   answerSpec,
}

// Spec returns the response specification for a stage.
// Specifications define the expected output format and behavioral constraints.
// Returns ErrInvalidStage if the stage is not recognized.
func Spec(stage Stage) (string, error) {
	text, ok := specs[stage]
	if !ok {
		return "", ErrInvalidStage
	}
	return text, nil
}

// Compose builds the system prompt for a stage. A non-empty override
// replaces the default instructions; the specification is always appended.
func Compose(stage Stage, override string) (string, error) {
	text, err := Instructions(stage)
	if err != nil {
		return "", err
	}
	if o := strings.TrimSpace(override); o != "" {
		text = o
	}

	spec, err := Spec(stage)
	if err != nil {
		return "", err
	}

	return text + "\n\n" + spec, nil
}
