package pipeline

// Fixed instruction texts for the seven pipeline stages. These are part of
// the stage contract: each request context is exactly the documented prior
// outputs concatenated with one of these instructions.

const systemInstruction = `You are ScholarMate, an expert research assistant. You analyze academic papers with rigor and precision. Be factual, cite the paper's own claims, and never invent results. Respond in clean markdown unless instructed otherwise.`

const promptSummary = `Write a structured technical summary of the attached paper with the following sections:
1. Problem Statement
2. Key Contributions
3. Methodology
4. Results
5. Limitations
Keep each section concise and grounded in the paper's text.`

const promptCritique = `Critically review the attached paper. Identify exactly three weaknesses, numbered 1 to 3. For each weakness, name the affected claim or section and explain in two or three sentences why it undermines the paper's conclusions.`

const promptExperiment = `Design a small reproducible experiment that tests the paper's central claim. Constraints: it must run in under one minute on a laptop, it may only use numpy, pandas, matplotlib, scikit-learn, and scipy, and it must fall back to synthetic data when the paper's dataset is unavailable. Answer with exactly these five labeled fields as text:
Hypothesis:
Data:
Method:
Metrics:
Expected Outcome:`

const promptCodegen = `Write a single self-contained Python script implementing the experiment plan above. Use only numpy, pandas, matplotlib, scikit-learn, and scipy. Generate synthetic data inside the script. Print intermediate metrics to stdout and save any plot to a file instead of showing it. Respond with only the code.`

const promptSlides = `Create a presentation covering the paper analysis above. Produce exactly five slides: Title & Problem, Approach, Experiment, Results, Conclusions. Respond with a JSON array of objects, each with a "title" string and a "bullets" array of short strings. No prose outside the JSON.`

const promptInterpretation = `In at most 150 words, explain what the outcome of the experiment plan above would mean for the paper's central claim if the expected trend holds, and what it would mean if it does not. Plain prose, no headings.`

const promptValidation = `Check the analysis above against the attached paper. Verify that the summary, critique, and experiment plan are consistent with each other and grounded in the paper's actual content. Report any contradiction or unsupported claim you find. If there are none, state exactly: "Outputs are internally consistent and grounded."`
