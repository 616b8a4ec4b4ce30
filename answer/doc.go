// Package answer turns retrieved candidates into a grounded chat answer.
//
// BuildPrompt renders the candidates as a context block and pairs it with a
// system prompt that restricts the model to that context. An Answerer runs
// retrieval and generation for one question and reports the outcome as a
// Result.
//
// Usage:
//
//	answerer, err := answer.NewAnswerer(retriever, provider.Generator())
//	if err != nil {
//		return err
//	}
//	res := answerer.Answer(ctx, "How much baggage can I take?")
//	if res.Err != nil && !errors.Is(res.Err, answer.ErrNoInformation) {
//		return res.Err
//	}
//	fmt.Println(res.Text)
package answer
