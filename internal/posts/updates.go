package posts

import "fmt"

// ProgressUpdate is one event of a running submission, sent without blocking.
type ProgressUpdate struct {
	Phase   Phase
	Step    int
	Total   int
	Message string
	Task    *UploadTask
}

type Phase int

const (
	Validate Phase = iota
	Upload
	Create
	Done
)

func (p Phase) String() string {
	switch p {
	case Validate:
		return "validate"
	case Upload:
		return "upload"
	case Create:
		return "create"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

func uploadStartedUpdate(t UploadTask, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Upload,
		Step:    t.Index + 1,
		Total:   total,
		Message: fmt.Sprintf("Uploading %s", t.Name),
		Task:    &t,
	}
}

func uploadFinishedUpdate(t UploadTask, total int) ProgressUpdate {
	msg := fmt.Sprintf("Uploaded %s", t.Name)
	if t.Status == TaskFailed {
		msg = fmt.Sprintf("File %d: %s", t.Index+1, t.Error)
	}
	return ProgressUpdate{Phase: Upload, Step: t.Index + 1, Total: total, Message: msg, Task: &t}
}

func creatingUpdate(kind string) ProgressUpdate {
	return ProgressUpdate{Phase: Create, Step: 1, Total: 1, Message: fmt.Sprintf("Creating %s post", kind)}
}

func doneUpdate(postID string) ProgressUpdate {
	return ProgressUpdate{Phase: Done, Step: 1, Total: 1, Message: fmt.Sprintf("Posted %s", postID)}
}
