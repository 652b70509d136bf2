package adapter

// entry is one known integration: a one-line description and, for
// some, a short client-side usage example shown by the api command.
type entry struct {
	description string
	example     string
}

// catalog describes the integrations the hub knows by name.  A tool
// that a mode references without declaring it in the config file is
// built from here as a simulated adapter.
var catalog = map[string]entry{ //nolint:gochecknoglobals
	"ray": {
		description: "Distributed computing framework for ML/AI workloads",
		example: `import ray
ray.init()

@ray.remote
def process_data(data):
    return data * 2

futures = [process_data.remote(i) for i in range(10)]
results = ray.get(futures)
ray.shutdown()`,
	},
	"dask": {
		description: "Parallel computing library for analytics",
		example: `import dask.array as da

x = da.random.random((1000, 1000), chunks=(100, 100))
result = (x + x.T).sum()
result.compute()`,
	},
	"openai": {
		description: "OpenAI API integration for AI models",
		example: `from openai import OpenAI

client = OpenAI()
resp = client.chat.completions.create(
    model="gpt-4o-mini",
    messages=[{"role": "user", "content": "Hello!"}],
)
print(resp.choices[0].message.content)`,
	},
	"simulink":         {description: "MATLAB Simulink integration"},
	"python_interface": {description: "Python scripting interface"},
	"langchain": {
		description: "LangChain framework integration",
		example: `from langchain.llms import OpenAI
from langchain.chains import LLMChain

llm = OpenAI(temperature=0.7)
chain = LLMChain(llm=llm, prompt=prompt)
result = chain.run("Hello World")`,
	},
	"langgraph": {
		description: "LangGraph workflow integration",
		example: `from langgraph.graph import StateGraph, END

workflow = StateGraph(WorkflowState)
workflow.add_node("process", process_node)
workflow.add_edge("process", END)
app = workflow.compile()`,
	},
	"fastapi": {
		description: "FastAPI web framework integration",
		example: `from fastapi import FastAPI

app = FastAPI()

@app.get("/")
async def root():
    return {"message": "Hello World"}`,
	},
	"github":    {description: "GitHub API integration"},
	"shortcuts": {description: "System shortcuts integration"},
	"obsidian": {
		description: "Obsidian note-taking integration",
		example: `def read_note(path):
    with open(path, encoding="utf-8") as f:
        return f.read()

def create_note(path, content):
    with open(path, "w", encoding="utf-8") as f:
        f.write(content)`,
	},
	"zotero": {description: "Zotero reference management integration"},
}

// DefaultSimDelay is the simulated connect time of catalog tools.
const DefaultSimDelay = "300ms"

// Describe returns the catalog description of name.
func Describe(name string) (string, bool) {
	e, ok := catalog[name]
	return e.description, ok
}

// Example returns the usage example for name.  Not every catalog tool
// has one.
func Example(name string) (string, bool) {
	e, ok := catalog[name]
	return e.example, ok && e.example != ""
}

// CatalogSpec returns the spec used for a tool that is referenced by a
// mode but not declared in the config file.
func CatalogSpec(name string) Spec {
	return Spec{
		Name:    name,
		Kind:    KindSim,
		Options: map[string]string{"delay": DefaultSimDelay},
	}
}
