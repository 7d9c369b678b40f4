package ingest

// pullRequestSchema validates one PR metadata record.
const pullRequestSchema = `{
  "type": "object",
  "required": ["number", "state", "created_at"],
  "properties": {
    "number": {"type": "integer", "minimum": 1},
    "state": {"type": "string", "enum": ["open", "closed", "merged"]},
    "created_at": {"type": "string", "format": "date-time"},
    "closed_at": {"type": "string", "format": "date-time"},
    "merge_commit_sha": {"type": "string"},
    "head_ref": {"type": "string"},
    "head_repo": {"type": "string"},
    "human_comments": {"type": "integer", "minimum": 0}
  }
}`

// eventSchema validates one timeline event record.
const eventSchema = `{
  "type": "object",
  "required": ["pr", "actor", "timestamp", "kind"],
  "properties": {
    "pr": {"type": "integer", "minimum": 1},
    "actor": {"type": "string", "minLength": 1},
    "role": {"type": "string"},
    "timestamp": {"type": "string", "format": "date-time"},
    "kind": {"type": "string", "enum": ["comment", "review", "commit"]}
  }
}`
