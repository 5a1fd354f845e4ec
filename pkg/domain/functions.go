package domain

// Names of the registered functions the orchestrator exposes to the model.
// The set is fixed for the lifetime of a conversation.
const (
	FunctionCreateTask     = "create_task"
	FunctionListTasks      = "list_tasks"
	FunctionUpdateTask     = "update_task"
	FunctionDeleteTask     = "delete_task"
	FunctionDeleteAllTasks = "delete_all_tasks"
	FunctionGenerateImage  = "generate_image"
)
