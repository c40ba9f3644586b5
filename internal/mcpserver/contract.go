package mcpserver

// PostFormat describes what publish_note produces so an LLM can prepare
// notes that publish cleanly.
const PostFormat = `# Post Format

Every post written by notepress starts with a YAML header followed by the
note body.

## Header

` + "```" + `markdown
---
title: My Note                     # file name without extension unless overridden
date: "2024-05-06 07:08:09"        # time of first publish
updated: "2024-05-06 07:08:09"     # only added when missing
tags:
  - go
categories:
  - Dev
excerpt: One line summary          # only for notes published without a header
---
` + "```" + `

## Rules

1. A note that already has a header keeps every key it has, in order. Only a
   missing or empty ` + "`" + `title` + "`" + ` or ` + "`" + `date` + "`" + ` is filled in, and ` + "`" + `updated` + "`" + `
   is added only if absent.
2. Tags are applied only when the header has no ` + "`" + `tags` + "`" + ` key. Prefer names
   returned by ` + "`" + `list_taxonomy` + "`" + `.
3. The post file name is the note file name with spaces replaced by hyphens.

## Images

- ` + "`" + `![[cat.png]]` + "`" + ` and ` + "`" + `![alt](cat.png)` + "`" + ` are copied into the site asset
  directory and rewritten to ` + "`" + `![alt](/assets/cat.png)` + "`" + `.
- Images are looked up next to the note, then in ` + "`" + `attachments` + "`" + `, ` + "`" + `assets` + "`" + `,
  ` + "`" + `images` + "`" + ` and ` + "`" + `附件` + "`" + ` folders up to three levels above it.
- Remote images (` + "`" + `http://` + "`" + `, ` + "`" + `https://` + "`" + `) and paths already under the site
  asset URL are left alone.
- A different file with the same name gets a timestamp suffix; an identical one
  is reused.
`
